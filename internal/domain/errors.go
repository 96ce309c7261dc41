package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Errores de dominio (sin dependencias externas).
var (
	ErrNotFound     = errors.New("recurso no encontrado")
	ErrInvalidInput = errors.New("entrada inválida")
	ErrDuplicate    = errors.New("recurso duplicado")
	ErrUnauthorized = errors.New("no autorizado")

	// ErrPermissionDenied el actor no puede operar sobre la tienda o el recurso.
	ErrPermissionDenied = errors.New("acceso denegado")

	// Errores de validación del carrito (ver IsValidation).
	ErrEmptyOrInvalidCart    = errors.New("carrito vacío o con líneas inválidas")
	ErrInvalidPrice          = errors.New("precio unitario inválido")
	ErrBusinessRuleViolation = errors.New("regla de negocio incumplida")

	ErrInsufficientStock = errors.New("stock insuficiente")

	// ErrPersistence fallo de almacenamiento durante la venta (la venta no quedó aplicada).
	ErrPersistence = errors.New("error de persistencia")
	// ErrExposedPartial la venta quedó aplicada a medias y requiere conciliación externa.
	ErrExposedPartial = errors.New("venta aplicada parcialmente")
)

// IsValidation indica si err es un rechazo de validación del carrito.
func IsValidation(err error) bool {
	return errors.Is(err, ErrEmptyOrInvalidCart) ||
		errors.Is(err, ErrInvalidPrice) ||
		errors.Is(err, ErrBusinessRuleViolation)
}

// ValidationError rechazo de validación con detalle (qué línea o campo).
type ValidationError struct {
	Kind   error // ErrEmptyOrInvalidCart, ErrInvalidPrice o ErrBusinessRuleViolation
	Detail string
}

func (e *ValidationError) Error() string {
	if e.Detail == "" {
		return e.Kind.Error()
	}
	return e.Kind.Error() + ": " + e.Detail
}

func (e *ValidationError) Unwrap() error { return e.Kind }

// StockShortageError rechazo de un descuento de stock mayor a la cantidad disponible.
type StockShortageError struct {
	ProductID string
	StoreID   string
	Requested int
	Available int
}

func (e *StockShortageError) Error() string {
	return fmt.Sprintf("stock insuficiente: producto %s en tienda %s (solicitado %d, disponible %d)",
		e.ProductID, e.StoreID, e.Requested, e.Available)
}

func (e *StockShortageError) Unwrap() error { return ErrInsufficientStock }

// SaleStep paso del flujo de creación de una venta.
type SaleStep string

const (
	StepValidate   SaleStep = "validate"
	StepHeader     SaleStep = "header"
	StepItems      SaleStep = "items"
	StepStock      SaleStep = "stock"
	StepCommit     SaleStep = "commit"
	StepCompensate SaleStep = "compensate"
)

// SaleOutcome resultado terminal de un intento de venta fallido.
type SaleOutcome string

const (
	// OutcomeRejected no se escribió nada (validación, permiso o stock con rollback).
	OutcomeRejected SaleOutcome = "rejected"
	// OutcomeRolledBack hubo escrituras pero se revirtieron por completo.
	OutcomeRolledBack SaleOutcome = "rolled_back"
	// OutcomeExposedPartial quedaron escrituras sin revertir; hay registro de conciliación.
	OutcomeExposedPartial SaleOutcome = "exposed_partial"
)

// SaleError envuelve cualquier fallo de CreateSale con el id de intento (correlation id) y el paso.
type SaleError struct {
	AttemptID string
	SaleID    string
	Step      SaleStep
	Outcome   SaleOutcome
	Err       error
}

func (e *SaleError) Error() string {
	var b strings.Builder
	b.WriteString("venta ")
	b.WriteString(e.AttemptID)
	b.WriteString(" [")
	b.WriteString(string(e.Step))
	b.WriteString("/")
	b.WriteString(string(e.Outcome))
	b.WriteString("]: ")
	b.WriteString(e.Err.Error())
	return b.String()
}

func (e *SaleError) Unwrap() error { return e.Err }

// Is permite errors.Is(err, ErrExposedPartial) cuando el resultado fue parcial.
func (e *SaleError) Is(target error) bool {
	return target == ErrExposedPartial && e.Outcome == OutcomeExposedPartial
}
