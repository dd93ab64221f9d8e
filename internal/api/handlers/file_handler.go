package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/nsvirk/gitcoderapi/internal/api/middleware"
	"github.com/nsvirk/gitcoderapi/internal/service"
	"github.com/nsvirk/gitcoderapi/pkg/utils/response"
)

// FileHandler is the handler for the files API
type FileHandler struct {
	service *service.FileService
}

// NewFileHandler creates a new handler for the files API
func NewFileHandler(service *service.FileService) *FileHandler {
	return &FileHandler{service: service}
}

type fileRequest struct {
	repoParams
	Path    string `json:"path" query:"path"`
	Branch  string `json:"branch" query:"branch"`
	Content string `json:"content"`
	Message string `json:"message" query:"message"`
	SHA     string `json:"sha" query:"sha"`
}

func (r fileRequest) write() service.FileWrite {
	return service.FileWrite{
		Path:    r.Path,
		Content: r.Content,
		Message: r.Message,
		SHA:     r.SHA,
		Branch:  r.Branch,
	}
}

// GetContents lists a directory
func (h *FileHandler) GetContents(c echo.Context) error {
	var req fileRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	contents, err := h.service.ListContents(c.Request().Context(), middleware.CurrentSession(c), req.ref(), req.Path, req.Branch)
	if err != nil {
		return err
	}
	return response.SuccessResponse(c, response.Payload{"contents": contents})
}

// GetFile returns a file with decoded content
func (h *FileHandler) GetFile(c echo.Context) error {
	var req fileRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	file, err := h.service.ReadFile(c.Request().Context(), middleware.CurrentSession(c), req.ref(), req.Path, req.Branch)
	if err != nil {
		return err
	}
	return response.SuccessResponse(c, response.Payload{"file": file})
}

// CreateFile creates a new file
func (h *FileHandler) CreateFile(c echo.Context) error {
	var req fileRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	result, err := h.service.CreateFile(c.Request().Context(), middleware.CurrentSession(c), req.ref(), req.write())
	if err != nil {
		return err
	}
	return response.SuccessStatusResponse(c, http.StatusCreated, response.Payload{"result": result})
}

// UpdateFile overwrites a file guarded by its sha
func (h *FileHandler) UpdateFile(c echo.Context) error {
	var req fileRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	result, err := h.service.UpdateFile(c.Request().Context(), middleware.CurrentSession(c), req.ref(), req.write())
	if err != nil {
		return err
	}
	return response.SuccessResponse(c, response.Payload{"result": result})
}

// DeleteFile removes a file guarded by its sha
func (h *FileHandler) DeleteFile(c echo.Context) error {
	var req fileRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	result, err := h.service.DeleteFile(c.Request().Context(), middleware.CurrentSession(c), req.ref(), req.write())
	if err != nil {
		return err
	}
	return response.SuccessResponse(c, response.Payload{"result": result})
}

// Search searches code in one repository
func (h *FileHandler) Search(c echo.Context) error {
	var req struct {
		repoParams
		Query string `query:"query"`
	}
	if err := c.Bind(&req); err != nil {
		return err
	}
	result, err := h.service.Search(c.Request().Context(), middleware.CurrentSession(c), req.ref(), req.Query)
	if err != nil {
		return err
	}
	return response.SuccessResponse(c, response.Payload{
		"totalCount": result.TotalCount,
		"results":    result.Items,
	})
}
