package http

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"tixledger/db/organizations"
	"tixledger/entity"
)

type organizationRequest struct {
	Name        string `json:"name"`
	MetadataURI string `json:"metadata_uri"`
}

type postEventRequest struct {
	Name              string    `json:"name"`
	Description       string    `json:"description"`
	Location          string    `json:"location"`
	StartTime         time.Time `json:"start_time"`
	EndTime           time.Time `json:"end_time"`
	Price             int64     `json:"price"`
	MaxCapacity       int64     `json:"max_capacity"`
	TicketMetadataURI string    `json:"ticket_metadata_uri"`
}

func (s Server) PostOrganization(c echo.Context) error {
	var request organizationRequest
	if err := c.Bind(&request); err != nil {
		return err
	}

	err := s.organizationRepo.Initialize(
		c.Request().Context(),
		c.Param("owner"),
		request.Name,
		request.MetadataURI,
	)
	if err != nil {
		return httpError(err)
	}

	return c.NoContent(http.StatusCreated)
}

func (s Server) GetOrganization(c echo.Context) error {
	org, err := s.organizationRepo.Get(c.Request().Context(), c.Param("owner"))
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusOK, org)
}

func (s Server) PutOrganization(c echo.Context) error {
	var request organizationRequest
	if err := c.Bind(&request); err != nil {
		return err
	}

	err := s.organizationRepo.UpdateMetadata(
		c.Request().Context(),
		c.Param("owner"),
		request.Name,
		request.MetadataURI,
	)
	if err != nil {
		return httpError(err)
	}

	return c.NoContent(http.StatusOK)
}

func (s Server) PostEvent(c echo.Context) error {
	var request postEventRequest
	if err := c.Bind(&request); err != nil {
		return err
	}

	event, err := s.organizationRepo.CreateEvent(
		c.Request().Context(),
		c.Param("owner"),
		organizations.CreateEventParams{
			Name:              request.Name,
			Description:       request.Description,
			Location:          request.Location,
			StartTime:         request.StartTime,
			EndTime:           request.EndTime,
			Price:             request.Price,
			MaxCapacity:       request.MaxCapacity,
			TicketMetadataURI: request.TicketMetadataURI,
		},
	)
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusCreated, event)
}

func (s Server) GetOrganizationEvents(c echo.Context) error {
	events, err := s.organizationRepo.ListEvents(c.Request().Context(), c.Param("owner"))
	if err != nil {
		return httpError(err)
	}

	if events == nil {
		events = []entity.Event{}
	}

	return c.JSON(http.StatusOK, events)
}
