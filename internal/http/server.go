package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/ndimoski/taskmirror/internal/log"
	"github.com/ndimoski/taskmirror/pkg/filter"
	"github.com/ndimoski/taskmirror/pkg/models"
	"github.com/ndimoski/taskmirror/pkg/service"
)

// StartServer exposes the filtered task view read-only over HTTP, plus the
// write operations the CLI also offers. The JSON surface exists for
// operational poking; presentation proper consumes the view in-process.
func StartServer(port string, view *service.TaskView, engine *service.LifecycleEngine) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", HealthHandler)
	mux.HandleFunc("/tasks", TasksHandler(view, engine))
	mux.HandleFunc("/tasks/complete", CompleteHandler(engine))
	mux.HandleFunc("/statuses", StatusesHandler(view))

	log.GetLogger().Infof("Starting taskmirror server on :%s", port)
	return http.ListenAndServe(":"+port, mux)
}

func HealthHandler(w http.ResponseWriter, r *http.Request) {
	fmt.Fprintf(w, "taskmirror server is running")
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// TasksHandler serves the ordered visible task set on GET and creates
// records on POST.
func TasksHandler(view *service.TaskView, engine *service.LifecycleEngine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			listTasks(w, r, view)
		case http.MethodPost:
			createTask(w, r, engine)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	}
}

func listTasks(w http.ResponseWriter, r *http.Request, view *service.TaskView) {
	q := r.URL.Query()
	f := filter.Filters{
		SelfOnly:    q.Get("self") == "true",
		Search:      q.Get("search"),
		StatusLabel: q.Get("status"),
		ProjectID:   q.Get("project_id"),
		ProjectName: q.Get("project"),
		Assignee:    q.Get("assignee"),
		Priority:    q.Get("priority"),
		DueToday:    q.Get("due_today") == "true",
		Today:       time.Now(),
	}
	tasks := view.Snapshot(f)
	if tasks == nil {
		tasks = []models.TaskRecord{}
	}
	writeJSON(w, http.StatusOK, tasks)
}

type createTaskRequest struct {
	models.TaskRecord
}

func createTask(w http.ResponseWriter, r *http.Request, engine *service.LifecycleEngine) {
	var req createTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := engine.CreateTask(req.TaskRecord); err != nil {
		log.GetLogger().Errorf("Failed to create task: %v", err)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("Created task '%s'", req.Title),
	})
}

type completeRequest struct {
	Title   string    `json:"title"`
	DueDate time.Time `json:"due_date"`
	Origin  string    `json:"origin"`
	Comment string    `json:"comment"`
}

// CompleteHandler runs the two-phase completion in one request: the
// comment in the body is the confirmation.
func CompleteHandler(engine *service.LifecycleEngine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var req completeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		rec := models.TaskRecord{
			Title:   req.Title,
			DueDate: req.DueDate,
			Origin:  models.TaskOrigin(req.Origin),
		}
		pending, err := engine.Transition(rec, models.CompletedTaskStatus)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if err := pending.Confirm(req.Comment); err != nil {
			pending.Cancel()
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{
			"message": fmt.Sprintf("Completed task '%s'", req.Title),
		})
	}
}

// StatusesHandler enumerates the pickable status labels with their colors.
// Reserved meta-labels are excluded.
func StatusesHandler(view *service.TaskView) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		catalog := view.Catalog()
		type labelEntry struct {
			Label string `json:"label"`
			Color string `json:"color"`
		}
		var out []labelEntry
		for _, label := range catalog.Labels() {
			out = append(out, labelEntry{Label: label, Color: catalog.ColorFor(label)})
		}
		writeJSON(w, http.StatusOK, out)
	}
}
