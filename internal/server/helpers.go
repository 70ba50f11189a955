package server

import (
	"errors"
	"io"
	"log/slog"
	"strings"
	"unicode"

	"gorahrib/internal/middleware"
	"gorahrib/internal/models"
	"gorahrib/internal/service"

	"github.com/gofiber/fiber/v2"
)

// errResponseWritten tells a handler that the 400 is already on the wire and
// it should return nil so the error handler leaves the response alone.
var errResponseWritten = errors.New("response already written")

// pageWindow is a limit/offset window read from the query string.
type pageWindow struct {
	Limit  int
	Offset int
}

const maxPageSize = 100

// parsePagination reads ?limit= and ?offset=, clamping limit to
// (0, maxPageSize] and offset to >= 0.
func parsePagination(c *fiber.Ctx, defaultLimit int) pageWindow {
	p := pageWindow{Limit: c.QueryInt("limit", defaultLimit), Offset: c.QueryInt("offset", 0)}
	if p.Limit <= 0 {
		p.Limit = defaultLimit
	}
	p.Limit = min(p.Limit, maxPageSize)
	p.Offset = max(p.Offset, 0)
	return p
}

// parseID reads a positive numeric route parameter. On failure it writes
// "Invalid peak ID" style 400s and returns errResponseWritten.
func (s *Server) parseID(c *fiber.Ctx, param string) (uint, error) {
	id, err := c.ParamsInt(param)
	if err != nil || id <= 0 {
		_ = models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid "+humanizeParam(param)))
		return 0, errResponseWritten
	}
	return uint(id), nil
}

// humanizeParam turns "id" into "ID" and "peakId" into "peak ID".
func humanizeParam(param string) string {
	if param == "id" {
		return "ID"
	}
	prefix, ok := strings.CutSuffix(param, "Id")
	if !ok {
		return param
	}
	var b strings.Builder
	for i, r := range prefix {
		if i > 0 && unicode.IsUpper(r) {
			b.WriteByte(' ')
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String() + " ID"
}

// currentUserID returns the user set by AuthRequired.
func currentUserID(c *fiber.Ctx) uint {
	id, _ := c.Locals("userID").(uint)
	return id
}

// respondServiceError writes err with the status its AppError code maps to.
func respondServiceError(c *fiber.Ctx, err error) error {
	status := models.MapServiceError(err)
	if status >= fiber.StatusInternalServerError {
		middleware.Logger.ErrorContext(c.UserContext(), "request failed",
			slog.String("path", c.Path()), slog.String("error", err.Error()))
	}
	return models.RespondWithError(c, status, err)
}

// readUploads reads the files posted under field. A request that is not
// multipart yields no files.
func readUploads(c *fiber.Ctx, field string) ([]service.UploadFile, error) {
	if !strings.HasPrefix(strings.ToLower(c.Get(fiber.HeaderContentType)), fiber.MIMEMultipartForm) {
		return nil, nil
	}
	form, err := c.MultipartForm()
	if err != nil {
		return nil, models.NewValidationError("Invalid multipart form")
	}

	headers := form.File[field]
	files := make([]service.UploadFile, 0, len(headers))
	for _, fh := range headers {
		src, err := fh.Open()
		if err != nil {
			return nil, models.NewValidationError("Unable to read uploaded file")
		}
		content, err := io.ReadAll(src)
		_ = src.Close()
		if err != nil {
			return nil, models.NewValidationError("Unable to read uploaded file")
		}
		files = append(files, service.UploadFile{
			Filename:    fh.Filename,
			ContentType: fh.Header.Get(fiber.HeaderContentType),
			Content:     content,
		})
	}
	return files, nil
}
