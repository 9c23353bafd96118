package handlers

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"uptimedock/app/internal/checker"
	"uptimedock/app/internal/database"
	"uptimedock/app/internal/monitor"
)

const (
	msgURLRequiredAdd  = "URL is required for adding."
	msgURLRequiredEdit = "URL is required for editing."
	msgNameRequired    = "Name is required."
	msgURLExists       = "URL with this name already exists."
	msgURLNotFound     = "URL with this name does not exist."
	msgInvalidAction   = "Invalid action, choose between add, delete or edit in parameter of action!"
)

// HandleURLActions adds, deletes or edits a registry entry.
// Parameters come from the query string or a form body. Deleting or editing
// an entry resets the failure streak of its previous URL.
func HandleURLActions(tracker *monitor.FailureTracker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		action := strings.ToLower(strings.TrimSpace(r.FormValue("action")))
		name := strings.TrimSpace(r.FormValue("name"))
		target := strings.TrimSpace(r.FormValue("url"))

		switch action {
		case "add", "delete", "edit":
		default:
			writeError(w, http.StatusBadRequest, msgInvalidAction)
			return
		}
		if name == "" {
			writeError(w, http.StatusBadRequest, msgNameRequired)
			return
		}

		switch action {
		case "add":
			if target == "" {
				writeError(w, http.StatusBadRequest, msgURLRequiredAdd)
				return
			}
			if err := checker.ValidateURL(target); err != nil {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			u, err := database.AddURL(name, target)
			if err != nil {
				registryError(w, err)
				return
			}
			logRegistry(name, "URL added", target)
			writeJSON(w, http.StatusOK, map[string]any{"msg": "URL added.", "url": u})

		case "delete":
			prev, err := database.GetURLByName(name)
			if err != nil {
				registryError(w, err)
				return
			}
			if err := database.DeleteURL(name); err != nil {
				registryError(w, err)
				return
			}
			forget(tracker, prev.URL)
			logRegistry(name, "URL deleted", prev.URL)
			writeJSON(w, http.StatusOK, map[string]any{"msg": "URL deleted."})

		case "edit":
			if target == "" {
				writeError(w, http.StatusBadRequest, msgURLRequiredEdit)
				return
			}
			if err := checker.ValidateURL(target); err != nil {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			prev, err := database.GetURLByName(name)
			if err != nil {
				registryError(w, err)
				return
			}
			u, err := database.EditURL(name, target)
			if err != nil {
				registryError(w, err)
				return
			}
			forget(tracker, prev.URL)
			logRegistry(name, "URL updated", prev.URL+" -> "+target)
			writeJSON(w, http.StatusOK, map[string]any{"msg": "URL updated.", "url": u})
		}

	}
}

func forget(tracker *monitor.FailureTracker, url string) {
	if tracker != nil {
		tracker.Reset(url)
	}
}

func registryError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, database.ErrURLExists):
		writeError(w, http.StatusConflict, msgURLExists)
	case errors.Is(err, database.ErrURLNotFound):
		writeError(w, http.StatusNotFound, msgURLNotFound)
	default:
		log.Printf("registry: %v", err)
		writeError(w, http.StatusInternalServerError, "server error")
	}
}

func logRegistry(name, msg, details string) {
	log.Printf("%s: %s %s", msg, name, details)
	_ = database.InsertLog(database.LogLevelInfo, database.LogCategoryRegistry, name, msg, details)
}
