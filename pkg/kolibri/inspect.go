package kolibri

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/charmbracelet/lipgloss"

	"github.com/ilkoid/kolibri-sdk/pkg/utils"
)

// Verdict - классификация ответа Inspector'ом.
type Verdict int

const (
	VerdictSuccess Verdict = iota
	VerdictAccessDenied
	VerdictInvalidRequest
	VerdictNotImplemented
	VerdictUnknown
)

// String возвращает строковое представление вердикта.
func (v Verdict) String() string {
	switch v {
	case VerdictSuccess:
		return "success"
	case VerdictAccessDenied:
		return "access_denied"
	case VerdictInvalidRequest:
		return "invalid_request"
	case VerdictNotImplemented:
		return "not_implemented"
	default:
		return "unknown"
	}
}

// Classify определяет вердикт по статусу.
func Classify(resp *Response) Verdict {
	switch {
	case resp.OK():
		return VerdictSuccess
	case resp.StatusCode == http.StatusForbidden:
		return VerdictAccessDenied
	case resp.StatusCode == http.StatusBadRequest:
		return VerdictInvalidRequest
	case resp.StatusCode == http.StatusUnprocessableEntity:
		return VerdictNotImplemented
	default:
		return VerdictUnknown
	}
}

// inspectStyles - стили сообщений Inspector'а, привязанные к Client.out.
type inspectStyles struct {
	body    lipgloss.Style
	success lipgloss.Style
	warn    lipgloss.Style
	failure lipgloss.Style
}

func newInspectStyles(r *lipgloss.Renderer) inspectStyles {
	return inspectStyles{
		body:    r.NewStyle().Foreground(lipgloss.Color("245")), // Dim gray
		success: r.NewStyle().Foreground(lipgloss.Color("154")).Bold(true),
		warn:    r.NewStyle().Foreground(lipgloss.Color("228")),
		failure: r.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
	}
}

// Inspect печатает ответ и его классификацию и возвращает его без изменений.
//
// 403, 400 и прочие не-2xx только печатаются: решение остаётся за вызывающим.
// 422 - ошибка ErrNotImplemented, в том числе в quiet mode.
func (c *Client) Inspect(resp *Response) (*Response, error) {
	verdict := Classify(resp)

	if !c.cfg.QuietMode {
		c.printResponse(resp, verdict)
	}

	if verdict == VerdictNotImplemented {
		utils.Error("kolibri request not implemented", "status", resp.StatusCode)
		return nil, &ResponseError{Response: resp, Err: ErrNotImplemented}
	}
	return resp, nil
}

func (c *Client) printResponse(resp *Response, verdict Verdict) {
	// Не JSON (например, бинарный контент) не печатаем
	var pretty bytes.Buffer
	if json.Valid(resp.Body) && json.Indent(&pretty, resp.Body, "", "  ") == nil {
		fmt.Fprintln(c.out, c.styles.body.Render(pretty.String()))
	}

	switch verdict {
	case VerdictSuccess:
		fmt.Fprintln(c.out, c.styles.success.Render("Success!"))
	case VerdictAccessDenied:
		fmt.Fprintln(c.out, c.styles.failure.Render("Access denied"))
	case VerdictInvalidRequest:
		fmt.Fprintln(c.out, c.styles.warn.Render("Missing Param/Invalid Request"))
	case VerdictNotImplemented:
		fmt.Fprintln(c.out, c.styles.failure.Render("Not implemented"))
	default:
		fmt.Fprintln(c.out, c.styles.warn.Render("Unknown Response"))
		fmt.Fprintln(c.out, resp.StatusCode)
	}
}
