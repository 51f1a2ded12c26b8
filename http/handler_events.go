package http

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"tixledger/entity"
)

type putOwnerEventStatusRequest struct {
	Owner  string `json:"owner"`
	Status string `json:"status"`
}

type putEventCapacityRequest struct {
	Owner       string `json:"owner"`
	MaxCapacity int64  `json:"max_capacity"`
}

type postVerifyTicketRequest struct {
	Owner       string `json:"owner"`
	TicketID    string `json:"ticket_id"`
	TicketOwner string `json:"ticket_owner"`
}

type verifyTicketResponse struct {
	Valid bool `json:"valid"`
}

func (s Server) GetEvent(c echo.Context) error {
	event, err := s.organizationRepo.GetEvent(c.Request().Context(), c.Param("event_id"))
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusOK, event)
}

func (s Server) PutEventStatus(c echo.Context) error {
	var request putOwnerEventStatusRequest
	if err := c.Bind(&request); err != nil {
		return err
	}

	status, err := entity.ParseEventStatus(request.Status)
	if err != nil {
		return httpError(err)
	}

	err = s.organizationRepo.UpdateEventStatus(
		c.Request().Context(),
		request.Owner,
		c.Param("event_id"),
		status,
	)
	if err != nil {
		return httpError(err)
	}

	return c.NoContent(http.StatusOK)
}

func (s Server) PutEventCapacity(c echo.Context) error {
	var request putEventCapacityRequest
	if err := c.Bind(&request); err != nil {
		return err
	}

	err := s.organizationRepo.UpdateEventCapacity(
		c.Request().Context(),
		request.Owner,
		c.Param("event_id"),
		request.MaxCapacity,
	)
	if err != nil {
		return httpError(err)
	}

	return c.NoContent(http.StatusOK)
}

func (s Server) PostVerifyTicket(c echo.Context) error {
	var request postVerifyTicketRequest
	if err := c.Bind(&request); err != nil {
		return err
	}

	err := s.organizationRepo.VerifyTicket(
		c.Request().Context(),
		request.Owner,
		c.Param("event_id"),
		request.TicketID,
		request.TicketOwner,
	)
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusOK, verifyTicketResponse{Valid: true})
}

func (s Server) GetAllSales(c echo.Context) error {
	sales, err := s.salesReadModel.AllSales(c.Request().Context())
	if err != nil {
		return httpError(err)
	}

	if sales == nil {
		sales = []entity.EventSales{}
	}

	return c.JSON(http.StatusOK, sales)
}

func (s Server) GetEventSales(c echo.Context) error {
	sales, err := s.salesReadModel.EventSales(c.Request().Context(), c.Param("event_id"))
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusOK, sales)
}
