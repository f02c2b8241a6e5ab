package lib

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/a-h/templ"

	"github.com/TecharoHQ/formguard"
	"github.com/TecharoHQ/formguard/internal"
	"github.com/TecharoHQ/formguard/lib/form"
	"github.com/TecharoHQ/formguard/lib/localization"
	"github.com/TecharoHQ/formguard/lib/token"
	"github.com/TecharoHQ/formguard/lib/validator"
	"github.com/TecharoHQ/formguard/web"
)

// maxFormBytes bounds the size of a submitted comment form.
const maxFormBytes = 1 << 20

// claim returns what the request says about itself: the client address set
// by the X-Real-Ip middleware and the thread being commented on.
func (s *Server) claim(r *http.Request) (token.Binding, error) {
	id := r.PathValue("id")
	if err := validThreadID(id); err != nil {
		return token.Binding{}, err
	}

	host := r.Header.Get("X-Real-Ip")
	if host == "" {
		return token.Binding{}, fmt.Errorf("[misconfiguration] X-Real-Ip header is not set")
	}

	return token.Binding{RemoteAddress: host, UniqueID: id}, nil
}

func (s *Server) GetThread(w http.ResponseWriter, r *http.Request) {
	lg := internal.GetRequestLogger(r)
	localizer := localization.GetLocalizer(r)

	claim, err := s.claim(r)
	if err != nil {
		s.claimError(w, r, lg, err)
		return
	}

	initial := map[string]string{}
	if err := s.field.Initialize(claim, url.Values{}, initial); err != nil {
		lg.Error("can't issue token", "err", err)
		s.respondWithError(w, r, localizer.T("submission_rejected"))
		return
	}

	s.renderThread(w, r, claim.UniqueID, web.Form{Token: initial[formguard.FieldName]}, http.StatusOK)
}

func (s *Server) PostThread(w http.ResponseWriter, r *http.Request) {
	lg := internal.GetRequestLogger(r)
	localizer := localization.GetLocalizer(r)

	claim, err := s.claim(r)
	if err != nil {
		s.claimError(w, r, lg, err)
		return
	}
	lg = lg.With("claim", claim)

	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	if err := r.ParseForm(); err != nil {
		lg.Debug("can't parse form", "err", err)
		s.respondWithStatus(w, r, localizer.T("submission_rejected"), http.StatusBadRequest)
		return
	}

	submitted := r.PostForm
	f := web.Form{
		Author: submitted.Get("author"),
		Body:   submitted.Get("body"),
	}

	if submitted.Get(formguard.HoneypotFieldName) != "" {
		lg.Info("honeypot filled in, rejecting submission")
		submissionsRejected.WithLabelValues("honeypot").Inc()
		f.Error = localizer.T("submission_rejected")
		s.rerender(w, r, lg, claim, url.Values{}, f)
		return
	}

	if _, err := s.field.Validate(submitted, claim); err != nil {
		var ferr *form.Error
		if !errors.As(err, &ferr) {
			lg.Error("[unexpected] token validation failed", "err", err)
			s.respondWithError(w, r, localizer.T("submission_rejected"))
			return
		}

		lg.Info("submission token rejected", "verdict", ferr.Verdict)
		submissionsRejected.WithLabelValues(ferr.Verdict.Kind.String()).Inc()
		f.Error = ferr.Message(localizer)

		// a form submitted too early may be resubmitted as is
		keep := url.Values{}
		if ferr.Verdict.Kind == validator.TooSoon {
			keep = submitted
		}

		s.rerender(w, r, lg, claim, keep, f)
		return
	}

	c, err := newComment(f.Author, f.Body, s.opts.Config.CommentMaxLength, s.clock.Now())
	if err != nil {
		lg.Debug("comment rejected", "err", err)
		submissionsRejected.WithLabelValues("comment").Inc()

		switch {
		case errors.Is(err, ErrCommentTooLong):
			f.Error = localizer.TD("comment_too_long", map[string]any{"Max": s.opts.Config.CommentMaxLength})
		default:
			f.Error = localizer.T("comment_required")
		}

		s.rerender(w, r, lg, claim, submitted, f)
		return
	}

	if err := s.appendComment(r.Context(), claim.UniqueID, c); err != nil {
		lg.Error("can't store comment", "err", err)
		s.respondWithError(w, r, localizer.T("submission_rejected"))
		return
	}

	lg.Info("comment stored", "comment_id", c.ID)
	http.Redirect(w, r, threadPath(url.PathEscape(claim.UniqueID))+"#comment-"+c.ID, http.StatusSeeOther)
}

// rerender shows the form again after a rejected submission. The token in
// submitted is kept if there is one, otherwise a fresh token is issued.
func (s *Server) rerender(w http.ResponseWriter, r *http.Request, lg *slog.Logger, claim token.Binding, submitted url.Values, f web.Form) {
	initial := map[string]string{}
	if err := s.field.Initialize(claim, submitted, initial); err != nil {
		lg.Error("can't issue token", "err", err)
		s.respondWithError(w, r, localization.GetLocalizer(r).T("submission_rejected"))
		return
	}

	f.Token = initial[formguard.FieldName]
	if f.Token == "" {
		f.Token = submitted.Get(formguard.FieldName)
	}

	s.renderThread(w, r, claim.UniqueID, f, s.opts.Config.StatusCodes.Rejected)
}

func (s *Server) renderThread(w http.ResponseWriter, r *http.Request, id string, f web.Form, status int) {
	lg := internal.GetRequestLogger(r)
	localizer := localization.GetLocalizer(r)

	comments, err := s.loadThread(r.Context(), id)
	if err != nil {
		lg.Error("can't load thread", "thread", id, "err", err)
		s.respondWithError(w, r, localizer.T("submission_rejected"))
		return
	}

	thread := web.Thread{ID: id}
	for _, c := range comments {
		thread.Comments = append(thread.Comments, web.Comment{
			ID:       c.ID,
			Author:   c.Author,
			Body:     c.Body,
			PostedAt: c.PostedAt,
		})
	}

	f.Action = threadPath(url.PathEscape(id))
	f.MaxLength = s.opts.Config.CommentMaxLength
	thread.Form = f

	handler := internal.GzipMiddleware(1, internal.NoStoreCache(templ.Handler(
		web.Base(localizer.TD("thread_title", map[string]any{"ID": id}), web.ThreadPage(thread, localizer), localizer),
		templ.WithStatus(status),
	)))
	handler.ServeHTTP(w, r)
}

func (s *Server) Healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintln(w, "OK")
}

func (s *Server) claimError(w http.ResponseWriter, r *http.Request, lg *slog.Logger, err error) {
	if errors.Is(err, ErrBadThreadID) {
		s.respondWithStatus(w, r, err.Error(), http.StatusNotFound)
		return
	}

	lg.Error("check failed", "err", err)
	s.respondWithError(w, r, "Internal Server Error: administrator has misconfigured formguard. Please contact the administrator and ask them to look for the logs around \"claim\"")
}

func (s *Server) respondWithError(w http.ResponseWriter, r *http.Request, message string) {
	s.respondWithStatus(w, r, message, http.StatusInternalServerError)
}

func (s *Server) respondWithStatus(w http.ResponseWriter, r *http.Request, msg string, status int) {
	localizer := localization.GetLocalizer(r)

	templ.Handler(web.Base(http.StatusText(status), web.ErrorPage(msg), localizer), templ.WithStatus(status)).ServeHTTP(w, r)
}
