package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	propertydomain "github.com/smallbiznis/rentflow/internal/property/domain"
)

type createPropertyRequest struct {
	Name         string  `json:"name"`
	Address      string  `json:"address"`
	City         string  `json:"city"`
	PostalCode   string  `json:"postal_code"`
	PropertyType string  `json:"property_type"`
	Surface      float64 `json:"surface"`
	Rooms        int     `json:"rooms"`
	RentAmount   int64   `json:"rent_amount"`
	Charges      int64   `json:"charges"`
}

type updatePropertyRequest struct {
	Name         *string  `json:"name"`
	Address      *string  `json:"address"`
	City         *string  `json:"city"`
	PostalCode   *string  `json:"postal_code"`
	PropertyType *string  `json:"property_type"`
	Surface      *float64 `json:"surface"`
	Rooms        *int     `json:"rooms"`
	RentAmount   *int64   `json:"rent_amount"`
	Charges      *int64   `json:"charges"`
}

func (s *Server) CreateProperty(c *gin.Context) {
	var req createPropertyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	resp, err := s.propertySvc.Create(c.Request.Context(), propertydomain.CreateRequest{
		Name:         req.Name,
		Address:      req.Address,
		City:         req.City,
		PostalCode:   req.PostalCode,
		PropertyType: req.PropertyType,
		Surface:      req.Surface,
		Rooms:        req.Rooms,
		RentAmount:   req.RentAmount,
		Charges:      req.Charges,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) ListProperties(c *gin.Context) {
	occupied, err := parseOptionalBool(c.Query("occupied"))
	if err != nil {
		AbortWithError(c, invalidField("invalid_occupied", "occupied must be true or false"))
		return
	}

	resp, err := s.propertySvc.List(c.Request.Context(), propertydomain.ListRequest{Occupied: occupied})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetProperty(c *gin.Context) {
	resp, err := s.propertySvc.Get(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) UpdateProperty(c *gin.Context) {
	var req updatePropertyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	resp, err := s.propertySvc.Update(c.Request.Context(), propertydomain.UpdateRequest{
		ID:           strings.TrimSpace(c.Param("id")),
		Name:         req.Name,
		Address:      req.Address,
		City:         req.City,
		PostalCode:   req.PostalCode,
		PropertyType: req.PropertyType,
		Surface:      req.Surface,
		Rooms:        req.Rooms,
		RentAmount:   req.RentAmount,
		Charges:      req.Charges,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) DeleteProperty(c *gin.Context) {
	if err := s.propertySvc.Delete(c.Request.Context(), strings.TrimSpace(c.Param("id"))); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
