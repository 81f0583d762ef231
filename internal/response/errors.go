package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrInvalidCredentials ErrCode = "INVALID_CREDENTIALS"
	ErrSessionInvalidated ErrCode = "SESSION_INVALIDATED"
	ErrTokenRequired      ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid       ErrCode = "TOKEN_INVALID"
	ErrTokenExpired       ErrCode = "TOKEN_EXPIRED"

	// ─── Authorization ─────────────────────────────────────────────────
	ErrForbidden        ErrCode = "FORBIDDEN"
	ErrOperatorOnly     ErrCode = "OPERATOR_ACCESS_ONLY"
	ErrPermissionDenied ErrCode = "PERMISSION_DENIED"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound ErrCode = "NOT_FOUND"
	ErrConflict ErrCode = "CONFLICT"

	// ─── Import ────────────────────────────────────────────────────────
	ErrFileRequired    ErrCode = "FILE_REQUIRED"
	ErrUnsupportedFile ErrCode = "UNSUPPORTED_FILE_TYPE"
	ErrFileTooLarge    ErrCode = "FILE_TOO_LARGE"
	ErrNoDataRows      ErrCode = "NO_DATA_ROWS"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Authentication ────────────────────────────────────────────────
	case ErrInvalidCredentials:
		return "E-mail ou senha incorretos."
	case ErrSessionInvalidated:
		return "Sua sessão expirou. Faça login novamente."
	case ErrTokenRequired:
		return "Token de autenticação é obrigatório."
	case ErrTokenInvalid:
		return "Token de autenticação inválido."
	case ErrTokenExpired:
		return "Token de autenticação expirado."

	// ─── Authorization ─────────────────────────────────────────────────
	case ErrForbidden:
		return "Você não tem permissão para acessar este recurso."
	case ErrOperatorOnly:
		return "Este recurso é restrito a operadores."
	case ErrPermissionDenied:
		return "Permissão negada."

	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Falha na validação. Verifique os dados enviados."
	case ErrInvalidID:
		return "Formato de ID inválido."
	case ErrInvalidPayload:
		return "Corpo da requisição inválido."

	// ─── Resources ─────────────────────────────────────────────────────
	case ErrNotFound:
		return "Recurso não encontrado."
	case ErrConflict:
		return "O recurso já existe."

	// ─── Import ────────────────────────────────────────────────────────
	case ErrFileRequired:
		return "É necessário enviar um arquivo."
	case ErrUnsupportedFile:
		return "Tipo de arquivo não suportado."
	case ErrFileTooLarge:
		return "O arquivo excede o tamanho máximo permitido."
	case ErrNoDataRows:
		return "A planilha não contém linhas de dados."

	// ─── Rate Limiting ─────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Muitas requisições. Tente novamente em instantes."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrInternal:
		return "Ocorreu um erro interno no servidor."
	default:
		return "Ocorreu um erro inesperado."
	}
}
