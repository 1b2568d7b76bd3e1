package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/jrsteele09/go-course-server/csrf"
	"github.com/rs/zerolog/log"
)

const (
	green      = "\033[32m"
	blue       = "\033[34m"
	cyan       = "\033[36m"
	yellow     = "\033[33m"
	magenta    = "\033[35m"
	gray       = "\033[90m"
	redInverse = "\033[7;31m"
	resetColor = "\033[0m"
)

var methodColors = map[string]string{
	http.MethodGet:    green,
	http.MethodPost:   blue,
	http.MethodPut:    cyan,
	http.MethodDelete: yellow,
	http.MethodPatch:  magenta,
}

// logRoutes prints the route table in DEV, flagging state-changing routes the
// CSRF guard lets through without a token.
func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return
	}
	bypass := map[csrf.Route]bool{}
	for _, route := range csrfBypassPolicy().Routes() {
		bypass[route] = true
	}
	for _, route := range s.routes {
		method, path, found := strings.Cut(route, " ")
		if !found {
			method, path = "", route
		}
		logRoute(method, path, bypass[csrf.Route{Method: method, Path: path}])
	}
}

func logRoute(method, path string, csrfExempt bool) {
	paddedMethod := fmt.Sprintf(" %-7s", method)
	color, ok := methodColors[method]
	if !ok {
		color = gray
	}
	line := fmt.Sprintf("[%-19s] %s", color+paddedMethod+resetColor, path)
	if csrfExempt {
		line += " " + redInverse + " csrf-exempt " + resetColor
	}
	log.Debug().Msg(line)
}
