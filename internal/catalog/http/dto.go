package http

import (
	"time"

	"github.com/rentloop/rentloop-backend/internal/catalog"
)

type CreateProductRequest struct {
	Name   string `json:"name" binding:"required"`
	Status string `json:"status" binding:"omitempty,oneof=draft active inactive"`
}

type UpdateProductStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=draft active inactive"`
}

type ProductResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func NewProductResponse(p *catalog.Product) ProductResponse {
	return ProductResponse{
		ID:        p.ID,
		Name:      p.Name,
		Status:    string(p.Status),
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

type CreateLocationRequest struct {
	Name   string `json:"name" binding:"required"`
	Active *bool  `json:"active"`
}

type LocationResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

func NewLocationResponse(l *catalog.Location) LocationResponse {
	return LocationResponse{
		ID:        l.ID,
		Name:      l.Name,
		Active:    l.Active,
		CreatedAt: l.CreatedAt,
	}
}
