package main

import (
	"net/http"
	"time"
)

// startNotifierHandler for the "GET /v1/cron" endpoint. It arms the release
// notifier on the first call; later calls only report that it is running.
func (app *application) startNotifierHandler(w http.ResponseWriter, r *http.Request) {
	message := "release notifier already running"
	if app.notifier.EnsureStarted() {
		message = "release notifier started"
	}

	env := envelope{"message": message}
	if next, ok := app.notifier.NextRun(); ok {
		env["next_run"] = next.UTC().Format(time.RFC3339)
	}

	err := app.writeJSON(w, http.StatusOK, env, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}
