package api

import (
	"fmt"

	"github.com/and161185/learnhub-client/internal/model"
)

// --- wire types ---

type userDTO struct {
	ID                   int64    `json:"id"`
	Name                 string   `json:"name"`
	Email                string   `json:"email"`
	Occupation           string   `json:"occupation"`
	Photo                string   `json:"photo"`
	Roles                []string `json:"roles"`
	IsSubscriptionActive bool     `json:"is_subscription_active"`
}

type authDTO struct {
	User  *userDTO `json:"user"`
	Token string   `json:"token"`
}

type contentDTO struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type sectionDTO struct {
	ID       int64        `json:"id"`
	Name     string       `json:"name"`
	Contents []contentDTO `json:"section_contents"`
}

type courseDTO struct {
	ID       int64        `json:"id"`
	Slug     string       `json:"slug"`
	Name     string       `json:"name"`
	Sections []sectionDTO `json:"course_sections"`
}

// --- Principal ---

// toPrincipal converts the wire user; an id of zero means the server sent no user.
func toPrincipal(in *userDTO) (model.Principal, error) {
	if in == nil || in.ID == 0 {
		return model.Principal{}, fmt.Errorf("user without id")
	}
	return model.Principal{
		ID:                   in.ID,
		Name:                 in.Name,
		Email:                in.Email,
		Occupation:           in.Occupation,
		Photo:                in.Photo,
		Roles:                append([]string(nil), in.Roles...),
		IsSubscriptionActive: in.IsSubscriptionActive,
	}, nil
}

// --- AuthResult ---

func toAuthResult(in authDTO) (model.AuthResult, error) {
	if in.Token == "" {
		return model.AuthResult{}, fmt.Errorf("auth response without token")
	}
	u, err := toPrincipal(in.User)
	if err != nil {
		return model.AuthResult{}, err
	}
	return model.AuthResult{User: u, Token: in.Token}, nil
}

// --- Course ---

// toCourse keeps section and content order exactly as sent.
func toCourse(in courseDTO) model.Course {
	c := model.Course{ID: in.ID, Slug: in.Slug, Name: in.Name, Sections: make([]model.Section, 0, len(in.Sections))}
	for _, s := range in.Sections {
		sec := model.Section{ID: s.ID, Name: s.Name, Contents: make([]model.Content, 0, len(s.Contents))}
		for _, ct := range s.Contents {
			sec.Contents = append(sec.Contents, model.Content{ID: ct.ID, Name: ct.Name})
		}
		c.Sections = append(c.Sections, sec)
	}
	return c
}
