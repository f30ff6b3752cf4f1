package web

import (
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"

	"workdesk/internal/logging"
	"workdesk/internal/service"
)

func (s *Server) registration(w http.ResponseWriter, r *http.Request) {
	data := s.page(r, "Регистрация")
	if r.Method != http.MethodPost {
		data["Form"] = map[string]string{}
		s.render(w, http.StatusOK, "registration.html", data)
		return
	}

	input := service.RegistrationInput{
		Username:  r.PostFormValue("username"),
		Email:     r.PostFormValue("email"),
		FirstName: r.PostFormValue("firstName"),
		LastName:  r.PostFormValue("lastName"),
		Password1: r.PostFormValue("password1"),
		Password2: r.PostFormValue("password2"),
	}
	user, err := s.accountSvc.Register(r.Context(), input)
	if err != nil {
		if fields, ok := fieldErrors(err); ok {
			data["Form"] = map[string]string{
				"username":  input.Username,
				"email":     input.Email,
				"firstName": input.FirstName,
				"lastName":  input.LastName,
			}
			data["Errors"] = fields
			s.render(w, http.StatusBadRequest, "registration.html", data)
			return
		}
		s.renderError(w, r, err)
		return
	}

	if err := s.sessions.Start(w, user.ID); err != nil {
		s.renderError(w, r, err)
		return
	}
	logging.Logger.WithFields(logrus.Fields{"user": user.Username, "id": user.ID}).Info("user registered")
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) signin(w http.ResponseWriter, r *http.Request) {
	data := s.page(r, "Вход")
	if r.Method != http.MethodPost {
		data["Email"] = ""
		s.render(w, http.StatusOK, "signin.html", data)
		return
	}

	email := r.PostFormValue("email")
	user, err := s.accountSvc.SignIn(r.Context(), email, r.PostFormValue("password"))
	switch {
	case errors.Is(err, service.ErrUnknownEmail):
		data["Email"] = email
		data["Error"] = "Пользователь с таким e-mail не найден."
		s.render(w, http.StatusUnauthorized, "signin.html", data)
		return
	case errors.Is(err, service.ErrInvalidCredentials):
		logging.Logger.WithField("email", email).Warn("sign in with wrong password")
		data["Email"] = email
		data["Error"] = "Неверный e-mail или пароль."
		s.render(w, http.StatusUnauthorized, "signin.html", data)
		return
	case err != nil:
		s.renderError(w, r, err)
		return
	}

	if err := s.sessions.Start(w, user.ID); err != nil {
		s.renderError(w, r, err)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// signout ends the session on POST only; GET just goes home.
func (s *Server) signout(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodPost {
		s.sessions.Clear(w)
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) personalPage(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	code, err := s.accountSvc.EnsureLinkCode(r.Context(), user)
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	data := s.page(r, "Личный кабинет")
	data["LinkCode"] = code
	data["Linked"] = user.TelegramChatID != nil
	s.render(w, http.StatusOK, "lk.html", data)
}
