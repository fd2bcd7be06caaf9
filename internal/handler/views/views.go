// Package views renders the HTML pages of the instructor UI.
//
// Pages are declared in the .templ files. Each x_templ.go renders the
// matching x.templ and is replaced when templ generate runs.
package views

//go:generate templ generate

import (
	"context"
	"errors"
	"strings"

	"github.com/pavelanni/slidequiz/internal/exam"
	appI18n "github.com/pavelanni/slidequiz/internal/i18n"
	"github.com/pavelanni/slidequiz/internal/model"
)

// TopicRow is one line of the topic table.
type TopicRow struct {
	Topic     model.Topic
	Questions int
	Invalid   int
}

// DashboardData feeds DashboardPage.
type DashboardData struct {
	Topics   []TopicRow
	Defaults model.TypeCounts
	MaxFiles int
	Notices  []string
	Warnings []string
}

// ComposeRow is one topic in the compose form.
type ComposeRow struct {
	Topic     string
	Available int
	Automatic int
	Requested int
}

// ExamData feeds ExamPage.
type ExamData struct {
	Rows     []ComposeRow
	Target   int
	Manual   bool
	Active   *exam.Selection
	Notices  []string
	Warnings []string
	Errors   []string
}

// BankData feeds BankPage.
type BankData struct {
	Topic     model.Topic
	Questions []model.Question
	Notices   []string
}

func path(ctx context.Context, p string) string {
	return model.BasePathFromContext(ctx) + p
}

func t(ctx context.Context, id string) string {
	return appI18n.T(ctx, id)
}

var kindLabels = map[model.Kind]string{
	model.KindDirect:     "KindDirect",
	model.KindIntegrated: "KindIntegrated",
	model.KindCaseStudy:  "KindCaseStudy",
}

func roleLabel(r model.UserRole) string {
	if r == model.UserRoleAdmin {
		return "RoleAdmin"
	}
	return "RoleInstructor"
}

func statusLabel(u model.User) string {
	if u.Active {
		return "Active"
	}
	return "Inactive"
}

type countField struct {
	Name, Label string
	Value       int
}

// countFields lists the per-kind question count inputs.
func countFields(c model.TypeCounts) []countField {
	return []countField{
		{"direct", "CountDirect", c.Direct},
		{"integrated", "CountIntegrated", c.Integrated},
		{"case_study", "CountCaseStudy", c.CaseStudy},
	}
}

func questionClass(q model.Question) string {
	if q.Validate() != nil {
		return "question invalid"
	}
	return "question"
}

// questionProblems returns the localized validation message, or "" for a
// usable question.
func questionProblems(ctx context.Context, q model.Question) string {
	var ve *model.ValidationError
	if errors.As(q.Validate(), &ve) {
		return t(ctx, "InvalidQuestion") + ": " + strings.Join(ve.Problems, "; ")
	}
	return ""
}

func activeSummary(ctx context.Context, sel *exam.Selection) string {
	return appI18n.Td(ctx, "ActiveExamSummary", map[string]any{
		"Count":   sel.Len(),
		"Target":  sel.Target(),
		"Created": sel.CreatedAt().Local().Format("2006-01-02 15:04"),
	})
}

var userFields = []struct{ Name, Label, Type string }{
	{"username", "Username", "text"},
	{"display_name", "DisplayName", "text"},
	{"password", "Password", "password"},
}

var roles = []model.UserRole{model.UserRoleInstructor, model.UserRoleAdmin}

const stylesheet = `
body{font-family:system-ui,sans-serif;margin:0;color:#222;background:#fafafa}
header{background:#2f4a6d;color:#fff}
nav{display:flex;gap:1rem;align-items:center;padding:.6rem 1.2rem}
nav a,nav .link{color:#fff;text-decoration:none;background:none;border:0;cursor:pointer;font:inherit}
nav .spacer{flex:1}
main{max-width:68rem;margin:0 auto;padding:1rem 1.2rem}
table{border-collapse:collapse;width:100%;margin:.8rem 0}
th,td{border-bottom:1px solid #ddd;padding:.35rem .5rem;text-align:left;vertical-align:top}
fieldset{border:1px solid #ccc;margin:1rem 0;padding:.8rem}
label{display:block;margin:.3rem 0}
input[type=number]{width:5rem}
textarea,input[type=text],input[type=password]{width:100%;box-sizing:border-box}
.notices{color:#1d6b32}
.warnings{color:#8a4b00}
.errors{color:#a01919}
.invalid{background:#fff0f0}
.inline{display:inline}
`
