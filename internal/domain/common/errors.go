// Package common holds the error taxonomy shared by the ingestion pipeline,
// the unit ledger and the HTTP handlers.
package common

import (
	"errors"
	"net/http"
)

var (
	// ErrFormat means the uploaded sheet could not be decoded or has no data rows.
	ErrFormat = errors.New("report format error")

	// ErrEmptyBatch means no row with a valid professional and price survived sanitizing.
	ErrEmptyBatch = errors.New("report has no valid revenue rows")

	// ErrPersistence means the primary unit store rejected a read or write.
	// The in-memory result is still valid and the fallback cache holds it.
	ErrPersistence = errors.New("unit store unavailable")

	// ErrNotFound means the store has no document for the unit.
	ErrNotFound = errors.New("unit state not found")

	ErrInvalidTarget    = errors.New("target must be greater than zero")
	ErrInvalidMode      = errors.New("invalid upload mode")
	ErrUnknownUnit      = errors.New("unknown unit")
	ErrUploadInProgress = errors.New("another update is in progress for this unit")
	ErrInvalidCode      = errors.New("invalid admin code")
	ErrUnauthorized     = errors.New("admin session required")
	ErrInvalidRequest   = errors.New("invalid request")
	ErrFileTooLarge     = errors.New("uploaded file too large")
	ErrNotConfigured    = errors.New("integration not configured")
	ErrUpstream         = errors.New("upstream service failed")
	ErrRateLimited      = errors.New("too many requests")
)

// UserMessage maps an error to the single sentence shown to dashboard users.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrFormat):
		return "O arquivo parece estar vazio ou não contém dados suficientes."
	case errors.Is(err, ErrEmptyBatch):
		return "Nenhum faturamento válido encontrado no arquivo."
	case errors.Is(err, ErrPersistence):
		return "Não foi possível salvar os dados no servidor. Uma cópia local foi mantida."
	case errors.Is(err, ErrInvalidTarget):
		return "Por favor, insira um valor numérico válido para a meta."
	case errors.Is(err, ErrInvalidMode):
		return "Modo de atualização inválido. Use 'additive' ou 'replace'."
	case errors.Is(err, ErrUnknownUnit):
		return "Unidade não encontrada."
	case errors.Is(err, ErrUploadInProgress):
		return "Já existe uma atualização em andamento para esta unidade."
	case errors.Is(err, ErrInvalidCode):
		return "Código incorreto. Por favor, tente novamente."
	case errors.Is(err, ErrUnauthorized):
		return "Acesso administrativo necessário."
	case errors.Is(err, ErrInvalidRequest):
		return "Requisição inválida."
	case errors.Is(err, ErrFileTooLarge):
		return "O arquivo excede o tamanho máximo permitido."
	case errors.Is(err, ErrNotConfigured):
		return "Integração não configurada no servidor."
	case errors.Is(err, ErrUpstream):
		return "Serviço externo indisponível no momento."
	case errors.Is(err, ErrRateLimited):
		return "Muitas requisições. Aguarde alguns instantes e tente novamente."
	default:
		return "Ocorreu um erro ao processar o arquivo."
	}
}

// HTTPStatus maps an error to the status code of the JSON error response.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrFormat), errors.Is(err, ErrEmptyBatch), errors.Is(err, ErrInvalidTarget):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrInvalidMode), errors.Is(err, ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnknownUnit), errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrUploadInProgress):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidCode), errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, ErrPersistence), errors.Is(err, ErrNotConfigured):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrUpstream):
		return http.StatusBadGateway
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
