package models

// ErrorCode representa o código de erro da API
type ErrorCode string

const (
	ErrorCodeInvalidRequest ErrorCode = "INVALID_REQUEST"
	ErrorCodeUnauthorized   ErrorCode = "UNAUTHORIZED"
	ErrorCodeNotFound       ErrorCode = "NOT_FOUND"
	ErrorCodeConflict       ErrorCode = "CONFLICT"
	ErrorCodeGateway        ErrorCode = "GATEWAY"
	ErrorCodeInternal       ErrorCode = "INTERNAL"
)

// ErrorDetail representa um detalhe específico do erro
type ErrorDetail struct {
	Field string `json:"field"`
	Issue string `json:"issue"`
}

// ErrorInfo representa a informação do erro
type ErrorInfo struct {
	Code    string        `json:"code"`
	Message string        `json:"message"`
	Details []ErrorDetail `json:"details,omitempty"`
}

// ErrorResponse representa a resposta de erro padronizada da API
type ErrorResponse struct {
	Error ErrorInfo `json:"error"`
}

// NewErrorResponse cria uma nova resposta de erro
func NewErrorResponse(code ErrorCode, message string) ErrorResponse {
	return ErrorResponse{
		Error: ErrorInfo{
			Code:    string(code),
			Message: message,
		},
	}
}

// NewValidationErrorResponse cria um erro de validação com detalhes
func NewValidationErrorResponse(message string, details []ErrorDetail) ErrorResponse {
	return ErrorResponse{
		Error: ErrorInfo{
			Code:    string(ErrorCodeInvalidRequest),
			Message: message,
			Details: details,
		},
	}
}

// NewConflictErrorResponse cria um erro de conflito (referência duplicada)
func NewConflictErrorResponse(message string) ErrorResponse {
	return NewErrorResponse(ErrorCodeConflict, message)
}

// NewNotFoundErrorResponse cria um erro de recurso não encontrado
func NewNotFoundErrorResponse(message string) ErrorResponse {
	return NewErrorResponse(ErrorCodeNotFound, message)
}

// NewGatewayErrorResponse cria um erro de repasse da API externa
func NewGatewayErrorResponse(message string) ErrorResponse {
	return NewErrorResponse(ErrorCodeGateway, message)
}

// NewInternalErrorResponse cria um erro interno do servidor
func NewInternalErrorResponse(message string) ErrorResponse {
	return NewErrorResponse(ErrorCodeInternal, message)
}
