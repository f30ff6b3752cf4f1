package web

import (
	"fmt"
	"net/http"
	"strings"

	"workdesk/internal/model"
	"workdesk/internal/service"
)

func (s *Server) taskInfo(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	detail, err := s.taskSvc.GetTask(r.Context(), id)
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	user := currentUser(r)
	data := s.page(r, detail.Task.Title)
	data["Task"] = detail.Task
	data["Alternatives"] = detail.Alternatives
	data["CanChange"] = user != nil && detail.Task.IsRecipient(user.ID)
	s.render(w, http.StatusOK, "task_info.html", data)
}

func (s *Server) changeTaskStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	target := fmt.Sprintf("/task/%d", id)
	if r.PostFormValue("change_status") == "" {
		http.Redirect(w, r, target, http.StatusSeeOther)
		return
	}
	status := model.TaskStatus(strings.TrimSpace(r.PostFormValue("new_status")))
	if _, err := s.taskSvc.ChangeStatus(r.Context(), currentUser(r), id, status); err != nil {
		s.renderError(w, r, err)
		return
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

func (s *Server) createTask(w http.ResponseWriter, r *http.Request) {
	users, err := s.accountSvc.Users(r.Context())
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	data := s.page(r, "Новая задача")
	data["Statuses"] = model.TaskStatuses
	data["Users"] = users

	if r.Method != http.MethodPost {
		data["Form"] = map[string]string{"status": string(model.StatusAssigned)}
		s.render(w, http.StatusOK, "create_task.html", data)
		return
	}

	status := r.PostFormValue("status")
	if status == "" {
		// older form posts carried the status under "category"
		status = r.PostFormValue("category")
	}
	form := map[string]string{
		"title":   r.PostFormValue("title"),
		"text":    r.PostFormValue("text"),
		"status":  status,
		"user_to": r.PostFormValue("user_to"),
	}
	_, err = s.taskSvc.CreateTask(r.Context(), currentUser(r), service.TaskInput{
		Title:             form["title"],
		Text:              form["text"],
		Status:            model.TaskStatus(strings.TrimSpace(status)),
		RecipientUsername: form["user_to"],
	})
	if err != nil {
		if fields, ok := fieldErrors(err); ok {
			data["Form"] = form
			data["Errors"] = fields
			s.render(w, http.StatusBadRequest, "create_task.html", data)
			return
		}
		s.renderError(w, r, err)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) myTasks(w http.ResponseWriter, r *http.Request) {
	mine, err := s.taskSvc.ListMine(r.Context(), currentUser(r))
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	data := s.page(r, "Мои задачи")
	data["Mine"] = mine
	s.render(w, http.StatusOK, "tasks.html", data)
}
