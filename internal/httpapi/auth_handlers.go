package httpapi

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/healingherb/shifa/internal/auth"
	"github.com/healingherb/shifa/internal/store"
)

type registerRequest struct {
	FirstName   string  `json:"first_name"`
	LastName    string  `json:"last_name"`
	Username    string  `json:"username"`
	Email       string  `json:"email"`
	Password    string  `json:"password"`
	Age         int     `json:"age"`
	Height      float64 `json:"height"`
	Weight      float64 `json:"weight"`
	Gender      string  `json:"gender"`
	Diseases    string  `json:"diseases"`
	Allergies   string  `json:"allergies"`
	Medications string  `json:"medications"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "صيغة الطلب غير صحيحة")
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Username == "" || req.Email == "" || req.Password == "" {
		respondError(w, http.StatusBadRequest, "اسم المستخدم والبريد الإلكتروني وكلمة المرور حقول مطلوبة")
		return
	}
	if len(req.Password) < 8 {
		respondError(w, http.StatusBadRequest, "كلمة المرور يجب أن تكون 8 أحرف على الأقل")
		return
	}
	if !strings.Contains(req.Email, "@") {
		respondError(w, http.StatusBadRequest, "البريد الإلكتروني غير صالح")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		log.Printf("register: hash password: %v", err)
		respondError(w, http.StatusInternalServerError, "حدث خطأ أثناء إنشاء الحساب")
		return
	}

	user, err := s.store.CreateUser(r.Context(), store.User{
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: hash,
		Age:          req.Age,
		Height:       req.Height,
		Weight:       req.Weight,
		Gender:       req.Gender,
		Diseases:     req.Diseases,
		Allergies:    req.Allergies,
		Medications:  req.Medications,
	})
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			respondError(w, http.StatusConflict, "اسم المستخدم أو البريد الإلكتروني مستخدم بالفعل")
			return
		}
		log.Printf("register: create user: %v", err)
		respondError(w, http.StatusInternalServerError, "حدث خطأ أثناء إنشاء الحساب")
		return
	}

	tokens, err := s.tokens.Issue(user.ID, user.Username, user.Email)
	if err != nil {
		log.Printf("register: issue tokens: %v", err)
		respondError(w, http.StatusInternalServerError, "حدث خطأ أثناء إنشاء الحساب")
		return
	}

	respondJSON(w, http.StatusCreated, envelope{
		Success: true,
		Message: "تم إنشاء الحساب بنجاح",
		Data:    map[string]any{"user": user, "tokens": tokens},
	})
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "صيغة الطلب غير صحيحة")
		return
	}
	if req.Username == "" || req.Password == "" {
		respondError(w, http.StatusBadRequest, "اسم المستخدم وكلمة المرور مطلوبان")
		return
	}

	user, err := s.store.UserByLogin(r.Context(), strings.TrimSpace(req.Username))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, http.StatusUnauthorized, "اسم المستخدم أو كلمة المرور غير صحيحة")
			return
		}
		log.Printf("login: lookup user: %v", err)
		respondError(w, http.StatusInternalServerError, "حدث خطأ أثناء تسجيل الدخول")
		return
	}
	if !auth.VerifyPassword(req.Password, user.PasswordHash) {
		respondError(w, http.StatusUnauthorized, "اسم المستخدم أو كلمة المرور غير صحيحة")
		return
	}

	tokens, err := s.tokens.Issue(user.ID, user.Username, user.Email)
	if err != nil {
		log.Printf("login: issue tokens: %v", err)
		respondError(w, http.StatusInternalServerError, "حدث خطأ أثناء تسجيل الدخول")
		return
	}

	respondJSON(w, http.StatusOK, envelope{
		Success: true,
		Message: "تم تسجيل الدخول بنجاح",
		Data:    map[string]any{"user": user, "tokens": tokens},
	})
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeJSON(r, &req); err != nil || req.RefreshToken == "" {
		respondError(w, http.StatusBadRequest, "توكن التحديث مطلوب")
		return
	}

	claims, err := s.tokens.VerifyRefresh(req.RefreshToken)
	if err != nil {
		respondError(w, http.StatusUnauthorized, err.Error())
		return
	}

	// The account may have been removed since the token was issued.
	user, err := s.store.UserByID(r.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, http.StatusUnauthorized, "التوكن غير صالح")
			return
		}
		log.Printf("refresh: lookup user: %v", err)
		respondError(w, http.StatusInternalServerError, "حدث خطأ أثناء تحديث التوكن")
		return
	}

	tokens, err := s.tokens.Issue(user.ID, user.Username, user.Email)
	if err != nil {
		log.Printf("refresh: issue tokens: %v", err)
		respondError(w, http.StatusInternalServerError, "حدث خطأ أثناء تحديث التوكن")
		return
	}

	respondData(w, http.StatusOK, map[string]any{"tokens": tokens})
}
