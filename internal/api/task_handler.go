package api

import "net/http"

// ListTasks возвращает зарегистрированные задачи в порядке регистрации.
// GET /api/v1/tasks
func (h *Handler) ListTasks(w http.ResponseWriter, r *http.Request) {
	decls := h.catalog.ListAll()

	result := make([]TaskResponse, len(decls))
	for i, decl := range decls {
		result[i] = TaskFromDomain(decl)
	}

	List(w, result, len(result))
}
