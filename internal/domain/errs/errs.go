// Package errs define las categorías de error compartidas por los motores de reglas.
// Los errores de cada dominio envuelven una de estas categorías con %w, así los handlers
// pueden mapear a status HTTP con errors.Is sin conocer cada error concreto.
package errs

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound: la sesión/reserva/medicación/paciente referenciado no existe.
	ErrNotFound = errors.New("not found")

	// ErrConflict: violación de una regla de negocio (cupo, duplicado, transición, ventana).
	ErrConflict = errors.New("conflict")

	// ErrBadRequest: la operación no aplica al estado del recurso (ej: sesión inactiva).
	ErrBadRequest = errors.New("bad request")

	// ErrInvalidInput: entrada mal formada (cantidad no positiva, fecha vacía, ids vacíos).
	ErrInvalidInput = errors.New("invalid input")
)

// New crea un error de dominio que envuelve la categoría kind.
func New(kind error, msg string) error {
	return fmt.Errorf("%w: %s", kind, msg)
}
