package services

import (
	"context"
	"html"
	"net/http"
	"strings"

	"github.com/mattjoyce/svcengine/internal/service"
)

// KindRoot is the index page service.
const KindRoot = "root"

// Root serves an HTML index linking the GET paths of every other service.
// The page is built once in Initialise.
type Root struct {
	*service.Base
	page string
}

func NewRoot(base *service.Base, _ Deps) (service.Service, error) {
	return &Root{Base: base}, nil
}

func (r *Root) Initialise(all []service.Service) error {
	var b strings.Builder
	for _, svc := range all {
		if svc.Name() == r.Name() {
			continue
		}
		b.WriteString("<h2>" + html.EscapeString(svc.Name()) + "</h2><ul>")
		for _, p := range svc.OwnedPathsByMethod()[http.MethodGet] {
			esc := html.EscapeString(p)
			b.WriteString(`<li><a href="` + esc + `">` + esc + `</a><br></li>`)
		}
		b.WriteString("</ul>")
	}
	r.page = b.String()
	return nil
}

func (r *Root) Start(context.Context) error {
	r.Logger().Info("root index ready", "bytes", len(r.page))
	return nil
}

func (r *Root) Handle(context.Context, *service.Request) *service.Response {
	return service.Text(http.StatusOK, r.page)
}
