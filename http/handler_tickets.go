package http

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/samber/lo"

	"tixledger/entity"
)

type postTicketManagerRequest struct {
	Authority string `json:"authority"`
}

type postMintTicketRequest struct {
	Buyer   string `json:"buyer"`
	EventID string `json:"event_id"`
	Amount  int64  `json:"amount"`
}

type postUseTicketRequest struct {
	Authority string `json:"authority"`
	EventID   string `json:"event_id"`
	Buyer     string `json:"buyer"`
}

type ticketRefundRequest struct {
	Authority string `json:"authority"`
	EventID   string `json:"event_id"`
	Buyer     string `json:"buyer"`
	Amount    int64  `json:"amount"`
}

type ticketResponse struct {
	TicketID     string `json:"ticket_id"`
	EventID      string `json:"event_id"`
	Buyer        string `json:"buyer"`
	TicketNumber int64  `json:"ticket_number"`
	PricePaid    int64  `json:"price_paid"`
	Valid        bool   `json:"valid"`
}

type postDepositRequest struct {
	Amount int64 `json:"amount"`
}

type accountResponse struct {
	AccountID string `json:"account_id"`
	Balance   int64  `json:"balance"`
}

func (s Server) PostTicketManager(c echo.Context) error {
	var request postTicketManagerRequest
	if err := c.Bind(&request); err != nil {
		return err
	}

	if err := s.ticketsRepo.Initialize(c.Request().Context(), request.Authority); err != nil {
		return httpError(err)
	}

	return c.NoContent(http.StatusCreated)
}

func (s Server) PostMintTicket(c echo.Context) error {
	var request postMintTicketRequest
	if err := c.Bind(&request); err != nil {
		return err
	}

	ticket, err := s.ticketsRepo.Mint(
		c.Request().Context(),
		request.Buyer,
		request.EventID,
		request.Amount,
	)
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusCreated, toTicketResponse(ticket))
}

func (s Server) GetTicket(c echo.Context) error {
	ticket, err := s.ticketsRepo.Get(c.Request().Context(), c.Param("ticket_id"))
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusOK, toTicketResponse(ticket))
}

func (s Server) GetEventTickets(c echo.Context) error {
	tickets, err := s.ticketsRepo.FindByEvent(c.Request().Context(), c.Param("event_id"))
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusOK, lo.Map(tickets, func(t entity.Ticket, _ int) ticketResponse {
		return toTicketResponse(t)
	}))
}

func (s Server) PostUseTicket(c echo.Context) error {
	var request postUseTicketRequest
	if err := c.Bind(&request); err != nil {
		return err
	}

	err := s.ticketsRepo.Use(
		c.Request().Context(),
		request.Authority,
		c.Param("ticket_id"),
		request.EventID,
		request.Buyer,
	)
	if err != nil {
		return httpError(err)
	}

	return c.NoContent(http.StatusOK)
}

func (s Server) TicketRefund(c echo.Context) error {
	var request ticketRefundRequest
	if err := c.Bind(&request); err != nil {
		return err
	}

	err := s.commandBus.Send(c.Request().Context(), &entity.RefundTicket{
		Header:    entity.NewEventHeader(),
		Authority: request.Authority,
		TicketID:  c.Param("ticket_id"),
		EventID:   request.EventID,
		Buyer:     request.Buyer,
		Amount:    request.Amount,
	})
	if err != nil {
		return err
	}

	return c.NoContent(http.StatusAccepted)
}

func (s Server) PostDeposit(c echo.Context) error {
	var request postDepositRequest
	if err := c.Bind(&request); err != nil {
		return err
	}

	accountID := c.Param("account_id")
	if err := s.accountsRepo.Deposit(c.Request().Context(), accountID, request.Amount); err != nil {
		return httpError(err)
	}

	return c.NoContent(http.StatusOK)
}

func (s Server) GetAccount(c echo.Context) error {
	accountID := c.Param("account_id")
	balance, err := s.accountsRepo.Balance(c.Request().Context(), accountID)
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusOK, accountResponse{
		AccountID: accountID,
		Balance:   balance,
	})
}

func toTicketResponse(t entity.Ticket) ticketResponse {
	return ticketResponse{
		TicketID:     t.ID,
		EventID:      t.EventID,
		Buyer:        t.Buyer,
		TicketNumber: t.TicketNumber,
		PricePaid:    t.PricePaid,
		Valid:        t.Valid(),
	}
}
