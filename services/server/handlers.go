// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package server

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/LoadoutForge/pkg/validation"
	"github.com/AleutianAI/LoadoutForge/services/generator"
)

// LoadoutRequest selects a role and enemy. Either may be empty, in which case
// it is chosen at random.
type LoadoutRequest struct {
	Role  string `json:"role" form:"role" binding:"max=64"`
	Enemy string `json:"enemy" form:"enemy" binding:"max=64"`
}

// UsageResponse is the body of GET /v1/usage.
type UsageResponse struct {
	Total int                `json:"total"`
	Items []usageCountOutput `json:"items"`
}

type usageCountOutput struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// HealthCheck reports liveness.
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// sanitize trims and validates the non-empty names in place.
func (r *LoadoutRequest) sanitize() error {
	role, err := validation.SanitizeOptional(r.Role)
	if err != nil {
		return fmt.Errorf("role: %w", err)
	}
	enemy, err := validation.SanitizeOptional(r.Enemy)
	if err != nil {
		return fmt.Errorf("enemy: %w", err)
	}
	r.Role, r.Enemy = role, enemy
	return nil
}

// bindOptionalJSON binds a JSON body, treating an empty body as zero values.
func bindOptionalJSON(c *gin.Context, req *LoadoutRequest) error {
	if err := c.ShouldBindJSON(req); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return req.sanitize()
}

// HandleGenerateLoadout returns the cached loadout for the requested key at
// once and schedules a regeneration in the background, so the next caller
// sees a fresh one. A key with nothing cached yields only role and enemy.
func HandleGenerateLoadout(gen *generator.Generator) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req LoadoutRequest
		if err := bindOptionalJSON(c, &req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		role, enemy := gen.Resolve(req.Role, req.Enemy)

		body, err := cachedBody(c, gen, role, enemy)
		if err != nil {
			slog.Error("reading cached loadout", "role", role, "enemy", enemy, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read cached loadout"})
			return
		}
		gen.Refresh(c.Request.Context(), role, enemy)
		c.JSON(http.StatusOK, body)
	}
}

// HandleGetCachedLoadout returns the cached loadout for ?role=&enemy=.
func HandleGetCachedLoadout(gen *generator.Generator) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req LoadoutRequest
		if err := c.ShouldBindQuery(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := req.sanitize(); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if req.Role == "" || req.Enemy == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "role and enemy are required"})
			return
		}
		body, err := cachedBody(c, gen, req.Role, req.Enemy)
		if err != nil {
			slog.Error("reading cached loadout", "role", req.Role, "enemy", req.Enemy, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read cached loadout"})
			return
		}
		c.JSON(http.StatusOK, body)
	}
}

func cachedBody(c *gin.Context, gen *generator.Generator, role, enemy string) (any, error) {
	entry, err := gen.Cached(c.Request.Context(), role, enemy)
	if err != nil {
		return nil, err
	}
	l, ok := entry.Loadout()
	if !ok {
		return gin.H{"role": role, "enemy": enemy}, nil
	}
	l.Role, l.Enemy = role, enemy
	return l, nil
}

// HandleGenerate runs a generation synchronously and returns the result.
func HandleGenerate(gen *generator.Generator) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req LoadoutRequest
		if err := bindOptionalJSON(c, &req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		res, err := gen.Generate(c.Request.Context(), req.Role, req.Enemy)
		if err != nil {
			slog.Error("generation failed", "role", req.Role, "enemy", req.Enemy, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "generation failed"})
			return
		}
		c.JSON(http.StatusOK, res)
	}
}

// HandleUsage reports item usage across history. ?top=N limits the rows.
func HandleUsage(gen *generator.Generator) gin.HandlerFunc {
	return func(c *gin.Context) {
		top := 0
		if v := c.Query("top"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "top must be a non-negative integer"})
				return
			}
			top = n
		}

		report, err := gen.UsageReport(c.Request.Context())
		if err != nil {
			slog.Error("usage report failed", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read history"})
			return
		}
		resp := UsageResponse{Total: len(report), Items: make([]usageCountOutput, 0, len(report))}
		for i, row := range report {
			if top > 0 && i >= top {
				break
			}
			resp.Items = append(resp.Items, usageCountOutput{Name: row.Name, Count: row.Count})
		}
		c.JSON(http.StatusOK, resp)
	}
}
