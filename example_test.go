package ferry_test

import (
	"context"
	"fmt"
	"log"
	"net/http/httptest"

	"github.com/aretw0/ferry"
	"github.com/aretw0/ferry/internal/testutils"
	"github.com/aretw0/ferry/pkg/domain"
)

func ExampleEngine() {
	srv := httptest.NewServer(testutils.NewPageSource(domain.StringVersion("v1")))
	defer srv.Close()

	engine, err := ferry.New(srv.URL, ferry.WithHTTPClient(srv.Client()))
	if err != nil {
		log.Fatal(err)
	}

	engine.On(domain.EventNavigate, func(ctx context.Context, e *domain.Event) {
		fmt.Printf("%s %s (%s)\n", e.Page.Component(), e.Page.URL(), e.Source)
	})

	ctx := context.Background()
	if _, err := engine.BootFromRoot(ctx, "/"); err != nil {
		log.Fatal(err)
	}
	if _, err := engine.Post(ctx, "/users", map[string]any{"name": "Ada"}); err != nil {
		log.Fatal(err)
	}
	if _, err := engine.Back(ctx); err != nil {
		log.Fatal(err)
	}

	// Output:
	// Home / (initial)
	// Users/Index /users (visit)
	// Home / (history)
}

func ExampleEngine_Post_validation() {
	srv := httptest.NewServer(testutils.NewPageSource(domain.StringVersion("v1")))
	defer srv.Close()

	engine, err := ferry.New(srv.URL, ferry.WithHTTPClient(srv.Client()))
	if err != nil {
		log.Fatal(err)
	}
	ctx := context.Background()
	if _, err := engine.BootFromRoot(ctx, "/users"); err != nil {
		log.Fatal(err)
	}

	// A 422 protocol response is a page like any other.
	page, err := engine.Post(ctx, "/users", map[string]any{"name": ""})
	if err != nil {
		log.Fatal(err)
	}
	errs, _ := page.Prop("errors")
	fmt.Println(page.Component(), string(errs))

	// Output:
	// Users/Create {"name":"The name field is required."}
}
