package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"tixledger/entity"
)

// httpError maps ledger sentinels to status codes, passing the error text
// through so callers see the same identifiers the core returns.
func httpError(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, entity.ErrUnauthorized):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case errors.Is(err, entity.ErrNotFound),
		errors.Is(err, entity.ErrEventNotFound),
		errors.Is(err, entity.ErrOrganizationNotFound),
		errors.Is(err, entity.ErrTicketNotFound),
		errors.Is(err, entity.ErrInvalidEventID):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, entity.ErrAlreadyInitialized),
		errors.Is(err, entity.ErrConflict):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, entity.ErrRegistryFull),
		errors.Is(err, entity.ErrCategoryFull),
		errors.Is(err, entity.ErrEventSoldOut),
		errors.Is(err, entity.ErrEventEnded),
		errors.Is(err, entity.ErrEventAtCapacity),
		errors.Is(err, entity.ErrTicketAlreadyUsed),
		errors.Is(err, entity.ErrTicketRefunded),
		errors.Is(err, entity.ErrInsufficientPayment),
		errors.Is(err, entity.ErrInvalidTicketOwner):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, entity.ErrNameTooLong),
		errors.Is(err, entity.ErrDescriptionTooLong),
		errors.Is(err, entity.ErrInvalidName),
		errors.Is(err, entity.ErrInvalidMetadataURI),
		errors.Is(err, entity.ErrInvalidEventDate),
		errors.Is(err, entity.ErrInvalidEventStatus):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	return err
}
