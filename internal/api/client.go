// Package api is the typed learnhub REST client. Every call goes through the gateway,
// so credential attach and failure policy are applied uniformly.
package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"path/filepath"

	"github.com/and161185/learnhub-client/internal/errs"
	"github.com/and161185/learnhub-client/internal/gateway"
	"github.com/and161185/learnhub-client/internal/model"
)

// Doer is the part of the gateway the client needs.
type Doer interface {
	Do(ctx context.Context, r *gateway.Request) (*gateway.Response, error)
}

// Client calls the remote API.
type Client struct {
	gw Doer
}

// New wraps gw.
func New(gw Doer) *Client { return &Client{gw: gw} }

// Login exchanges email and password for a principal and credential.
func (c *Client) Login(ctx context.Context, email, password string) (model.AuthResult, error) {
	req, err := gateway.JSON(http.MethodPost, "/login", map[string]string{"email": email, "password": password})
	if err != nil {
		return model.AuthResult{}, err
	}
	return c.auth(ctx, req)
}

// Register submits a multipart registration with a profile photo.
func (c *Client) Register(ctx context.Context, p model.RegisterProfile, photo model.Photo) (model.AuthResult, error) {
	if photo.Content == nil {
		return model.AuthResult{}, fmt.Errorf("%w: photo is required", errs.ErrInvalidInput)
	}
	name := photo.Filename
	if name == "" {
		name = "photo"
	}
	req, err := gateway.Multipart("/register", map[string]string{
		"name":                  p.Name,
		"email":                 p.Email,
		"password":              p.Password,
		"password_confirmation": p.PasswordConfirmation,
		"occupation":            p.Occupation,
	}, gateway.FilePart{Field: "photo", Filename: filepath.Base(name), Content: photo.Content})
	if err != nil {
		return model.AuthResult{}, err
	}
	return c.auth(ctx, req)
}

func (c *Client) auth(ctx context.Context, req *gateway.Request) (model.AuthResult, error) {
	resp, err := c.gw.Do(ctx, req)
	if err != nil {
		return model.AuthResult{}, err
	}
	dto, err := gateway.Unwrap[authDTO](resp.Body)
	if err != nil {
		return model.AuthResult{}, err
	}
	res, err := toAuthResult(dto)
	if err != nil {
		return model.AuthResult{}, fmt.Errorf("%w: %v", errs.ErrEnvelope, err)
	}
	return res, nil
}

// Logout invalidates the current credential on the server.
func (c *Client) Logout(ctx context.Context) error {
	_, err := c.gw.Do(ctx, &gateway.Request{Method: http.MethodPost, Path: "/logout"})
	return err
}

// CurrentUser fetches the principal for the attached credential. Both {data: user}
// and a bare user are accepted.
func (c *Client) CurrentUser(ctx context.Context) (model.Principal, error) {
	resp, err := c.gw.Do(ctx, &gateway.Request{Method: http.MethodGet, Path: "/user"})
	if err != nil {
		return model.Principal{}, err
	}
	dto, err := gateway.Unwrap[userDTO](resp.Body)
	if err != nil {
		return model.Principal{}, err
	}
	p, err := toPrincipal(&dto)
	if err != nil {
		return model.Principal{}, fmt.Errorf("%w: %v", errs.ErrEnvelope, err)
	}
	return p, nil
}

// Course fetches the ordered course tree by slug.
func (c *Client) Course(ctx context.Context, slug string) (model.Course, error) {
	if slug == "" {
		return model.Course{}, fmt.Errorf("%w: empty course slug", errs.ErrInvalidInput)
	}
	resp, err := c.gw.Do(ctx, &gateway.Request{Method: http.MethodGet, Path: "/courses/" + url.PathEscape(slug)})
	if err != nil {
		return model.Course{}, err
	}
	dto, err := gateway.Unwrap[courseDTO](resp.Body)
	if err != nil {
		return model.Course{}, err
	}
	return toCourse(dto), nil
}
