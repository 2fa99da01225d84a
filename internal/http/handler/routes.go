package handler

import (
	"context"
	"database/sql"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"

	"tilesheet/internal/service"
)

// RegisterRoutes attaches HTTP routes to the provided Fiber app.
func RegisterRoutes(app *fiber.App, db *sql.DB, svc service.TilesheetService) {
	app.Get("/health", HealthCheck(db))
	app.Get("/healthz", LivenessProbe())

	app.Delete("/tilesheets/:name", DeleteTilesheet(svc))

	ts := app.Group("/tilesheets/:name")
	ts.Get("/tiles", ListTiles(svc))
	ts.Post("/tiles", UploadTile(svc))
	ts.Get("/tiles/:tile", GetTile(svc))
	ts.Delete("/tiles/:tile", DeleteTile(svc))
	ts.Get("/index", GetIndex(svc))
	ts.Get("/sheets/:size", GetSheet(svc))
	ts.Get("/sheets/:size/url", GetSheetURL(svc))
}

// param copies a route parameter out of the request buffer Fiber reuses, so it
// can outlive the request as a lock key, metric label or span attribute.
func param(c *fiber.Ctx, key string) string {
	return utils.CopyString(c.Params(key))
}

// HealthCheck godoc
// @Summary Readiness probe
// @Description Checks database connectivity.
// @Tags health
// @Produce json
// @Success 200 {object} map[string]string
// @Failure 503 {object} errorPayload
// @Router /health [get]
func HealthCheck(db *sql.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if db == nil {
			return writeError(c, fiber.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "dependency unavailable")
		}
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			return writeError(c, fiber.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "dependency unavailable")
		}
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "healthy"})
	}
}

// LivenessProbe godoc
// @Summary Liveness probe
// @Tags health
// @Success 200
// @Router /healthz [get]
func LivenessProbe() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	}
}

// ListTiles godoc
// @Summary List tiles of a tilesheet
// @Tags tiles
// @Produce json
// @Param name path string true "Tilesheet name"
// @Param limit query int false "Page size" default(10)
// @Param offset query int false "Page offset" default(0)
// @Success 200 {object} service.TileListResult
// @Failure 400 {object} errorPayload
// @Failure 503 {object} errorPayload
// @Router /tilesheets/{name}/tiles [get]
func ListTiles(svc service.TilesheetService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		limit, err := strconv.Atoi(c.Query("limit", "10"))
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_LIMIT", "invalid limit")
		}
		offset, err := strconv.Atoi(c.Query("offset", "0"))
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_OFFSET", "invalid offset")
		}

		res, err := svc.ListTiles(c.UserContext(), param(c, "name"), limit, offset)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(res)
	}
}

// UploadTile godoc
// @Summary Insert or replace a tile
// @Description Multipart upload of a square PNG. The tile name defaults to the file name without extension.
// @Tags tiles
// @Accept mpfd
// @Produce json
// @Param name path string true "Tilesheet name"
// @Param file formData file true "Tile PNG"
// @Param tile formData string false "Tile name"
// @Success 201 {object} model.Tile
// @Failure 400 {object} errorPayload
// @Failure 422 {object} errorPayload
// @Router /tilesheets/{name}/tiles [post]
func UploadTile(svc service.TilesheetService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		fh, err := c.FormFile("file")
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_REQUIRED", "file is required")
		}

		f, err := fh.Open()
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_OPEN_ERROR", "cannot open uploaded file")
		}
		defer f.Close()

		tile := utils.CopyString(c.FormValue("tile"))
		if tile == "" {
			tile = strings.TrimSuffix(filepath.Base(fh.Filename), filepath.Ext(fh.Filename))
		}

		t, err := svc.AddTile(c.UserContext(), param(c, "name"), tile, f)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(t)
	}
}

// GetTile godoc
// @Summary Get a tile position
// @Tags tiles
// @Produce json
// @Param name path string true "Tilesheet name"
// @Param tile path string true "Tile name"
// @Success 200 {object} model.Tile
// @Failure 404 {object} errorPayload
// @Router /tilesheets/{name}/tiles/{tile} [get]
func GetTile(svc service.TilesheetService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		t, err := svc.GetTile(c.UserContext(), param(c, "name"), param(c, "tile"))
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(t)
	}
}

// DeleteTile godoc
// @Summary Remove a tile
// @Description Frees the tile slot and clears its pixels in every sheet.
// @Tags tiles
// @Param name path string true "Tilesheet name"
// @Param tile path string true "Tile name"
// @Success 204
// @Failure 404 {object} errorPayload
// @Router /tilesheets/{name}/tiles/{tile} [delete]
func DeleteTile(svc service.TilesheetService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := svc.RemoveTile(c.UserContext(), param(c, "name"), param(c, "tile")); err != nil {
			return writeServiceError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// DeleteTilesheet godoc
// @Summary Delete a tilesheet
// @Description Removes the index, every sheet image and the mirrored tile rows.
// @Tags sheets
// @Param name path string true "Tilesheet name"
// @Success 204
// @Failure 404 {object} errorPayload
// @Router /tilesheets/{name} [delete]
func DeleteTilesheet(svc service.TilesheetService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := svc.DeleteTilesheet(c.UserContext(), param(c, "name")); err != nil {
			return writeServiceError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// GetIndex godoc
// @Summary Download the tilesheet index
// @Description One "x y name" line per tile.
// @Tags sheets
// @Produce plain
// @Param name path string true "Tilesheet name"
// @Success 200 {string} string
// @Failure 404 {object} errorPayload
// @Router /tilesheets/{name}/index [get]
func GetIndex(svc service.TilesheetService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		rc, err := svc.Index(c.UserContext(), param(c, "name"))
		if err != nil {
			return writeServiceError(c, err)
		}
		c.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
		return c.SendStream(rc)
	}
}

// GetSheet godoc
// @Summary Download a sheet image
// @Tags sheets
// @Produce png
// @Param name path string true "Tilesheet name"
// @Param size path int true "Tile size in pixels"
// @Success 200 {file} file
// @Failure 400 {object} errorPayload
// @Failure 404 {object} errorPayload
// @Router /tilesheets/{name}/sheets/{size} [get]
func GetSheet(svc service.TilesheetService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		size, err := c.ParamsInt("size")
		if err != nil || size <= 0 {
			return writeError(c, fiber.StatusBadRequest, "INVALID_SIZE", "invalid size")
		}
		rc, info, err := svc.OpenSheet(c.UserContext(), param(c, "name"), size)
		if err != nil {
			return writeServiceError(c, err)
		}
		c.Set(fiber.HeaderContentType, "image/png")
		if info.ETag != "" {
			c.Set(fiber.HeaderETag, info.ETag)
		}
		if info.Size > 0 {
			return c.SendStream(rc, int(info.Size))
		}
		return c.SendStream(rc)
	}
}

// GetSheetURL godoc
// @Summary Presigned sheet image URL
// @Tags sheets
// @Produce json
// @Param name path string true "Tilesheet name"
// @Param size path int true "Tile size in pixels"
// @Success 200 {object} map[string]string
// @Failure 404 {object} errorPayload
// @Failure 501 {object} errorPayload
// @Router /tilesheets/{name}/sheets/{size}/url [get]
func GetSheetURL(svc service.TilesheetService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		size, err := c.ParamsInt("size")
		if err != nil || size <= 0 {
			return writeError(c, fiber.StatusBadRequest, "INVALID_SIZE", "invalid size")
		}
		u, err := svc.SheetURL(c.UserContext(), param(c, "name"), size)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(fiber.Map{"url": u})
	}
}
