package model

import (
	"context"
	"time"
)

// UserRole represents a user's access level.
type UserRole string

const (
	// UserRoleInstructor can upload slides, edit banks and compose exams.
	UserRoleInstructor UserRole = "instructor"
	// UserRoleAdmin can additionally manage users.
	UserRoleAdmin UserRole = "admin"
)

// User represents a system user.
type User struct {
	ID           int64
	Username     string
	DisplayName  string
	PasswordHash string
	Role         UserRole
	Active       bool
	CreatedAt    time.Time
}

// AuthSession represents an authentication session.
type AuthSession struct {
	ID        string
	UserID    int64
	CreatedAt time.Time
	ExpiresAt time.Time
}

type userCtxKey struct{}

// ContextWithUser stores a user in the request context.
func ContextWithUser(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, userCtxKey{}, u)
}

// UserFromContext retrieves the authenticated user from context, or nil.
func UserFromContext(ctx context.Context) *User {
	u, _ := ctx.Value(userCtxKey{}).(*User)
	return u
}

type basePathCtxKey struct{}

// ContextWithBasePath stores the base path prefix in context.
func ContextWithBasePath(ctx context.Context, basePath string) context.Context {
	return context.WithValue(ctx, basePathCtxKey{}, basePath)
}

// BasePathFromContext retrieves the base path from context (empty string if not set).
func BasePathFromContext(ctx context.Context) string {
	bp, _ := ctx.Value(basePathCtxKey{}).(string)
	return bp
}

type csrfCtxKey struct{}

// ContextWithCSRFToken stores the CSRF token in context.
func ContextWithCSRFToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, csrfCtxKey{}, token)
}

// CSRFTokenFromContext retrieves the CSRF token from context.
func CSRFTokenFromContext(ctx context.Context) string {
	t, _ := ctx.Value(csrfCtxKey{}).(string)
	return t
}

// TypeCounts is the number of questions of each kind requested from the generator.
type TypeCounts struct {
	Direct     int `json:"direct"`
	Integrated int `json:"integrated"`
	CaseStudy  int `json:"case_study"`
}

// Total returns the sum of all kinds.
func (c TypeCounts) Total() int {
	return c.Direct + c.Integrated + c.CaseStudy
}

// Topic is one uploaded source document in an instructor's bank.
type Topic struct {
	ID         int64     `json:"id"`
	UserID     int64     `json:"user_id"`
	Name       string    `json:"name"`
	Position   int       `json:"position"`
	SourceHash string    `json:"source_hash"`
	SourceText string    `json:"-"`
	ImageCount int       `json:"image_count"`
	CreatedAt  time.Time `json:"created_at"`
}

// AppConfig holds runtime parameters set via CLI flags.
type AppConfig struct {
	ExamSize      int // questions per composed exam
	RequireExact  bool
	MaxFiles      int // PDFs per upload
	DefaultCounts TypeCounts
	Language      string // generation prompt language
	BasePath      string // URL prefix for sub-path deployments (e.g. "/es")
	SecureCookies bool   // Set Secure flag on cookies (disable for local dev)
}
