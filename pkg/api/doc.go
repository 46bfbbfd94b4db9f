/*
Package api implements PixelForge's HTTP transport: REST endpoints for
task submission, image retrieval, provider configuration, prompt
optimization, and a server-sent-events stream of per-task progress.

Every JSON response (outside binary downloads and the ZIP export)
wraps its payload in the uniform envelope:

	{ "code": 0, "message": "", "data": ... }

On failure "code" is the HTTP status that the error's apierr.Kind maps
to (the same status the response carries) and "message" is the error
text.

	srv := api.New(cfg, mgr, store.Blobs, catalog)
	log.Logger.Fatal().Err(srv.ListenAndServe(ctx, addr)).Msg("api server exited")

Routing uses the standard library's net/http.ServeMux method+pattern
matching (Go 1.22+) rather than a third-party router — no router
package appears anywhere in the examples pack to ground one on, and
ServeMux's pattern syntax ("GET /tasks/{id}") covers every route this
service needs without extra dependencies.
*/
package api
