package http

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"tixledger/entity"
)

type postRegistryRequest struct {
	Authority string `json:"authority"`
}

type postRegisterOrganizationRequest struct {
	Owner       string `json:"owner"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type putEventStatusRequest struct {
	Authority string `json:"authority"`
	Status    string `json:"status"`
}

type postSweepRequest struct {
	Authority string `json:"authority"`
}

func (s Server) PostRegistry(c echo.Context) error {
	var request postRegistryRequest
	if err := c.Bind(&request); err != nil {
		return err
	}

	if err := s.registryRepo.Initialize(c.Request().Context(), request.Authority); err != nil {
		return httpError(err)
	}

	return c.NoContent(http.StatusCreated)
}

func (s Server) GetRegistry(c echo.Context) error {
	reg, err := s.registryRepo.Get(c.Request().Context())
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusOK, reg)
}

func (s Server) PostRegisterOrganization(c echo.Context) error {
	var request postRegisterOrganizationRequest
	if err := c.Bind(&request); err != nil {
		return err
	}

	info, err := s.registryRepo.RegisterOrganization(
		c.Request().Context(),
		request.Owner,
		request.Name,
		request.Description,
	)
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusCreated, info)
}

func (s Server) GetDirectory(c echo.Context) error {
	directory, err := s.registryRepo.Directory(c.Request().Context())
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusOK, directory)
}

func (s Server) PutRegistryEventStatus(c echo.Context) error {
	var request putEventStatusRequest
	if err := c.Bind(&request); err != nil {
		return err
	}

	status, err := entity.ParseEventStatus(request.Status)
	if err != nil {
		return httpError(err)
	}

	err = s.registryRepo.UpdateEventStatus(
		c.Request().Context(),
		request.Authority,
		c.Param("event_id"),
		status,
	)
	if err != nil {
		return httpError(err)
	}

	return c.NoContent(http.StatusOK)
}

func (s Server) PostSweep(c echo.Context) error {
	var request postSweepRequest
	if err := c.Bind(&request); err != nil {
		return err
	}

	err := s.commandBus.Send(c.Request().Context(), &entity.SweepEventStatuses{
		Header:    entity.NewEventHeader(),
		Authority: request.Authority,
	})
	if err != nil {
		return err
	}

	return c.NoContent(http.StatusAccepted)
}

func (s Server) GetBucketCounts(c echo.Context) error {
	counts, err := s.registryRepo.BucketCounts(c.Request().Context())
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusOK, counts)
}

func (s Server) GetBucket(c echo.Context) error {
	status, err := entity.ParseEventStatus(c.Param("status"))
	if err != nil {
		return httpError(err)
	}

	ids, err := s.registryRepo.ListBucket(c.Request().Context(), status)
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusOK, ids)
}
