package services

import (
	"context"
	"html"
	"net/http"
	"os"
	"strings"

	"github.com/mattjoyce/svcengine/internal/service"
)

// KindListDir lists the entries of a directory.
const KindListDir = "listdir"

// ListDir answers with the names in settings.directory (default ".").
type ListDir struct {
	*service.Base
	dir        string
	showHidden bool
}

func NewListDir(base *service.Base, _ Deps) (service.Service, error) {
	return &ListDir{
		Base:       base,
		dir:        base.StringSetting("directory", "."),
		showHidden: base.StringSetting("show_hidden", "false") == "true",
	}, nil
}

func (l *ListDir) Handle(_ context.Context, _ *service.Request) *service.Response {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		l.Logger().Error("failed to read directory", "directory", l.dir, "error", err)
		return service.NewResponse(http.StatusInternalServerError, nil)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if !l.showHidden && strings.HasPrefix(name, ".") {
			continue
		}
		if e.IsDir() {
			name += "/"
		}
		names = append(names, html.EscapeString(name))
	}

	title := "current working directory"
	if l.dir != "." {
		title = html.EscapeString(l.dir)
	}
	return service.Text(http.StatusOK, "<h1>Contents of "+title+":</h1>"+strings.Join(names, "<br>"))
}
