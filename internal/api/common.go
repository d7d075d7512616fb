package api

import (
	"errors"
	"math"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"pockettrade.com/internal/domain"
)

// Pagination 元数据结构
type Pagination struct {
	Page      int   `json:"Page"`      // 当前页码
	PageSize  int   `json:"PageSize"`  // 每页条数
	Total     int64 `json:"Total"`     // 总记录数
	TotalPage int   `json:"TotalPage"` // 总页数
}

// ListResponse 统一的分页响应结构
type ListResponse struct {
	Data       interface{} `json:"Data"`       // 数据列表
	Pagination Pagination  `json:"Pagination"` // 分页信息
}

// SendPaginatedResponse 发送标准的分页响应
func SendPaginatedResponse(c *fiber.Ctx, data interface{}, page, pageSize int, total int64) error {
	totalPage := 0
	if pageSize > 0 {
		totalPage = int(math.Ceil(float64(total) / float64(pageSize)))
	}

	return c.JSON(ListResponse{
		Data: data,
		Pagination: Pagination{
			Page:      page,
			PageSize:  pageSize,
			Total:     total,
			TotalPage: totalPage,
		},
	})
}

// handleError 把业务错误转换为 HTTP 响应
func handleError(c *fiber.Ctx, err error) error {
	status := domain.HTTPStatus(err)
	msg := err.Error()

	var appErr *domain.AppError
	if errors.As(err, &appErr) {
		msg = appErr.Message
		if appErr.Err != nil && status < fiber.StatusInternalServerError {
			msg = appErr.Error()
		}
	}
	if status >= fiber.StatusInternalServerError && status != fiber.StatusBadGateway {
		msg = "Internal server error"
	}

	return c.Status(status).JSON(fiber.Map{"Error": msg})
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"Error": msg})
}

// pageParams 解析分页参数
func pageParams(c *fiber.Ctx) (int, int) {
	page, _ := strconv.Atoi(c.Query("page", "1"))
	pageSize, _ := strconv.Atoi(c.Query("pageSize", "20"))

	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return page, pageSize
}
