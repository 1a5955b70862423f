package pipeline

import "net/http"

// Response is what a terminal handler returns. Body is written as JSON exactly
// as given; a nil Body writes no body.
type Response struct {
	Status int
	Body   any
	Header http.Header
}

// JSON returns a response with the given status and body.
func JSON(status int, body any) *Response {
	return &Response{Status: status, Body: body}
}

// OK returns a 200 response.
func OK(body any) *Response { return JSON(http.StatusOK, body) }

// Created returns a 201 response.
func Created(body any) *Response { return JSON(http.StatusCreated, body) }

// NoContent returns a 204 response without a body.
func NoContent() *Response { return &Response{Status: http.StatusNoContent} }
