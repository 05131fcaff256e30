/*
Package ferry is a client-side page-visit engine for server-driven
applications.

A Page Source (any HTTP application speaking the page protocol) answers
every navigation with a JSON page object: a component name, its props, the
canonical URL and the asset version. Ferry performs those navigations over
HTTP, keeps one history entry per page in the browser history, restores
pages on back/forward without a request, and reports every step of a visit
to listeners.

# Concepts

  - Visit: one navigation. A new visit supersedes the pending one; only the
    latest visit may commit.
  - History entry: the stored page, remembered UI state and scroll offsets of
    one browser history entry.
  - Asset version: when the Page Source reports a different version, ferry
    does a single full reload instead of committing.

# Usage

	engine, err := ferry.New("http://localhost:8080",
		ferry.WithResolver(components),
		ferry.WithStore(sqliteStore),
	)
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()
	if _, err := engine.BootFromRoot(ctx, "/"); err != nil {
		log.Fatal(err)
	}

	engine.On(domain.EventNavigate, func(ctx context.Context, e *domain.Event) {
		log.Println("now showing", e.Page.Component())
	})

	page, err := engine.Post(ctx, "/users", map[string]any{"name": "Ada"})
	switch {
	case errors.Is(err, domain.ErrVersionMismatch):
		// The browser was reloaded; nothing was committed.
	case err != nil:
		log.Fatal(err)
	}
	_ = page

	// Back restores the previous page without a request.
	page, err = engine.Back(ctx)
*/
package ferry
