package domain

import (
	"errors"
	"net/http"
)

// 定义通用业务错误
var (
	ErrNotFound      = errors.New("resource not found")
	ErrAlreadyExists = errors.New("resource already exists")
	ErrInvalidInput  = errors.New("invalid input")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrForbidden     = errors.New("forbidden")
	ErrInternalError = errors.New("internal error")
)

// 授权错误
var (
	ErrNotOperator      = errors.New("not operator")
	ErrNotOwner         = errors.New("not owner")
	ErrNotAdministrator = errors.New("not administrator")
)

// Pocket 相关错误
var (
	ErrInvalidPocket            = errors.New("invalid pocket config")
	ErrInvalidTransition        = errors.New("invalid status transition")
	ErrNotReadyToSwap           = errors.New("not ready to swap")
	ErrNotAbleToDeposit         = errors.New("pocket is not able to deposit")
	ErrNotAbleToWithdraw        = errors.New("pocket is not able to withdraw")
	ErrMintNotWhitelisted       = errors.New("mint is not whitelisted")
	ErrBuyConditionNotFulfilled = errors.New("buy condition not fulfilled")

	// 结算错误
	ErrZeroSwap              = errors.New("zero swap")
	ErrSlippageExceeded      = errors.New("slippage exceeded")
	ErrSwapTokensCannotMatch = errors.New("swap tokens cannot match")
	ErrInsufficientFunds     = errors.New("insufficient funds")

	// 内部一致性错误，正常流程下不会出现
	ErrBalanceUnderflow = errors.New("balance underflow")
	ErrConcurrentUpdate = errors.New("pocket was modified concurrently")
)

// Registry 相关错误
var (
	ErrAlreadyInitialized = errors.New("registry already initialized")
	ErrNotInitialized     = errors.New("registry not initialized")
	ErrMintExisted        = errors.New("mint already existed")
)

// AppError 应用错误，包含错误码和消息
type AppError struct {
	Code    int    // HTTP 状态码
	Message string // 用户友好的错误消息
	Err     error  // 原始错误
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// 创建常见错误的便捷函数
func NewNotFoundError(msg string) *AppError {
	return &AppError{Code: http.StatusNotFound, Message: msg, Err: ErrNotFound}
}

func NewBadRequestError(msg string) *AppError {
	return &AppError{Code: http.StatusBadRequest, Message: msg, Err: ErrInvalidInput}
}

func NewInternalError(msg string, err error) *AppError {
	return &AppError{Code: http.StatusInternalServerError, Message: msg, Err: err}
}

func NewConflictError(msg string) *AppError {
	return &AppError{Code: http.StatusConflict, Message: msg, Err: ErrAlreadyExists}
}

// NewForbiddenError 授权错误 (非 owner / operator / 管理员)
func NewForbiddenError(msg string, err error) *AppError {
	return &AppError{Code: http.StatusForbidden, Message: msg, Err: err}
}

// NewValidationError 创建参数校验失败，err 保留具体原因
func NewValidationError(msg string, err error) *AppError {
	return &AppError{Code: http.StatusBadRequest, Message: msg, Err: err}
}

// NewStateError 状态不允许当前操作 (未到执行时间、非法状态迁移等)，调用方可稍后重试
func NewStateError(msg string, err error) *AppError {
	return &AppError{Code: http.StatusConflict, Message: msg, Err: err}
}

// NewSettlementError 兑换结果不满足要求 (零成交、滑点、买入条件)
func NewSettlementError(msg string, err error) *AppError {
	return &AppError{Code: http.StatusUnprocessableEntity, Message: msg, Err: err}
}

// NewUpstreamError 交易场所或托管账户调用失败
func NewUpstreamError(msg string, err error) *AppError {
	return &AppError{Code: http.StatusBadGateway, Message: msg, Err: err}
}

// HTTPStatus 返回错误对应的 HTTP 状态码
func HTTPStatus(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrNotOperator), errors.Is(err, ErrNotOwner),
		errors.Is(err, ErrNotAdministrator), errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrInvalidPocket):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotReadyToSwap), errors.Is(err, ErrInvalidTransition),
		errors.Is(err, ErrConcurrentUpdate):
		return http.StatusConflict
	case errors.Is(err, ErrZeroSwap), errors.Is(err, ErrSlippageExceeded),
		errors.Is(err, ErrSwapTokensCannotMatch), errors.Is(err, ErrBuyConditionNotFulfilled),
		errors.Is(err, ErrInsufficientFunds):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}
