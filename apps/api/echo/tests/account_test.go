package tests

import (
	"encoding/json"
	"net/http"
	"net/url"
	"testing"

	"github.com/trezcool/darasa/core/account"
)

func TestAccountAPI_signup(t *testing.T) {
	resetDB(t)

	body := marchallObj(t, account.NewAccount{
		Name:            "Jane Doe",
		Email:           "jane@test.local",
		PhoneNumber:     "+254711111111",
		CountryCode:     "KE",
		Password:        "LeP@ssw0rd",
		PasswordConfirm: "LeP@ssw0rd",
	})

	req, rec := newRequest(http.MethodPost, "/v1/users/signup/student", body)
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("signup failed! code = %v; body = %s", rec.Code, rec.Body.String())
	}
	acct, msg := decodeRes(t, rec)
	if acct.Role != account.RoleStudent {
		t.Errorf("role = %v; want %v", acct.Role, account.RoleStudent)
	}
	if acct.Approval != account.ApprovalPending {
		t.Errorf("approval = %v; want %v", acct.Approval, account.ApprovalPending)
	}
	if acct.Status != account.StatusActive {
		t.Errorf("status = %v; want %v", acct.Status, account.StatusActive)
	}
	if msg != "registration successful; a verification code has been sent to your email" {
		t.Errorf("unexpected message %q", msg)
	}
	if nmock.Count() != 1 {
		t.Errorf("notifications sent = %v; want 1", nmock.Count())
	}

	tests := []httpTest{
		{
			name: "duplicate email", method: http.MethodPost, path: "/v1/users/signup/teacher",
			body: marchallObj(t, account.NewAccount{
				Name: "Imposter", Email: "jane@test.local", PhoneNumber: "+254722222222",
				CountryCode: "KE", Password: "LeP@ssw0rd", PasswordConfirm: "LeP@ssw0rd",
			}),
			wantCode: http.StatusConflict,
			wantData: errBody(t, http.StatusConflict, "an account with this email already exists"),
		},
		{
			name: "duplicate phone", method: http.MethodPost, path: "/v1/users/signup",
			body: marchallObj(t, account.NewAccount{
				Name: "Imposter", Email: "imposter@test.local", PhoneNumber: "+254711111111",
				CountryCode: "KE", Password: "LeP@ssw0rd", PasswordConfirm: "LeP@ssw0rd",
			}),
			wantCode: http.StatusConflict,
			wantData: errBody(t, http.StatusConflict, "an account with this phone number already exists"),
		},
		{
			name: "weak password", method: http.MethodPost, path: "/v1/users/signup/student",
			body: marchallObj(t, account.NewAccount{
				Name: "Weak", Email: "weak@test.local", PhoneNumber: "+254733333333",
				CountryCode: "KE", Password: "short", PasswordConfirm: "short",
			}),
			wantCode: http.StatusBadRequest,
			wantData: errBody(t, http.StatusBadRequest,
				map[string]string{"password": "password must contain at least 8 characters"}),
		},
		{
			name: "missing fields", method: http.MethodPost, path: "/v1/users/signup/teacher",
			body:     marchallObj(t, account.NewAccount{Name: "No Mail", Password: "LeP@ssw0rd", PasswordConfirm: "LeP@ssw0rd"}),
			wantCode: http.StatusBadRequest,
			wantData: errBody(t, http.StatusBadRequest, map[string]string{
				"email":        "this field is required",
				"phone_number": "this field is required",
				"country_code": "this field is required",
			}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(tt.method, tt.path, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func TestAccountAPI_login(t *testing.T) {
	resetDB(t)
	pwd := "LeP@ssw0rd"

	pending := createAccount(t, "Pending", "pending@test.local", "+254700000001", pwd,
		account.RoleStudent, account.ApprovalPending, account.StatusActive)
	blocked := createAccount(t, "Blocked", "blocked@test.local", "+254700000002", pwd,
		account.RoleTeacher, account.ApprovalApproved, account.StatusBlocked)
	verified := createVerified(t, "Verified", "verified@test.local", "+254700000003", pwd, account.RoleStudent)
	unverified := createAccount(t, "Unverified", "unverified@test.local", "+254700000004", pwd,
		account.RoleStudent, account.ApprovalApproved, account.StatusActive)

	loginBody := func(identifier, password string) []byte {
		return marchallObj(t, map[string]string{"identifier": identifier, "password": password})
	}

	tests := []httpTest{
		{
			name: "unknown account", body: loginBody("nobody@test.local", pwd),
			wantCode: http.StatusNotFound, wantData: errBody(t, http.StatusNotFound, "account not found"),
		},
		{
			name: "awaiting approval", body: loginBody(pending.Email, pwd),
			wantCode: http.StatusForbidden, wantData: errBody(t, http.StatusForbidden, "account is awaiting admin approval"),
		},
		{
			name: "blocked", body: loginBody(blocked.Email, pwd),
			wantCode: 450, wantData: errBody(t, 450, "account has been blocked by admin"),
		},
		{
			name: "wrong password", body: loginBody(verified.Email, "wr0ng!Pwd"),
			wantCode: http.StatusUnauthorized, wantData: errBody(t, http.StatusUnauthorized, "incorrect credentials"),
		},
		{
			name: "ok", body: loginBody(verified.Email, pwd),
			wantCode: http.StatusOK, extra: "login successful",
		},
		{
			name: "ok by phone", body: loginBody(verified.PhoneNumber, pwd),
			wantCode: http.StatusOK, extra: "login successful",
		},
		{
			name: "unverified gets a new code", body: loginBody(unverified.Email, pwd),
			wantCode: http.StatusOK, extra: "account not verified; a new verification code has been sent",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(http.MethodPost, "/v1/users/login", tt.body)
			app.ServeHTTP(rec, req)

			if wantMsg, ok := tt.extra.(string); ok {
				if rec.Code != tt.wantCode {
					t.Fatalf("code = %v; want %v; body = %s", rec.Code, tt.wantCode, rec.Body.String())
				}
				var res struct {
					Data struct {
						Token   string          `json:"token"`
						Account account.Account `json:"account"`
					} `json:"data"`
					Message string `json:"message"`
				}
				if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
					t.Fatalf("unmarshalling login response: %v", err)
				}
				if res.Data.Token == "" {
					t.Error("expected a token")
				}
				if res.Data.Account.LastLogin.IsZero() {
					t.Error("expected LastLogin to be set")
				}
				if res.Message != wantMsg {
					t.Errorf("message = %q; want %q", res.Message, wantMsg)
				}
				return
			}
			checkCodeAndData(t, tt, rec)
		})
	}

	// the unverified login above put a fresh code in the outbox
	if nmock.Count() != 1 {
		t.Errorf("notifications sent = %v; want 1", nmock.Count())
	}
}

func TestAccountAPI_otpFlow(t *testing.T) {
	resetDB(t)

	body := marchallObj(t, account.NewAccount{
		Name: "Jane Doe", Email: "jane@test.local", PhoneNumber: "+254711111111",
		CountryCode: "KE", Password: "LeP@ssw0rd", PasswordConfirm: "LeP@ssw0rd",
	})
	req, rec := newRequest(http.MethodPost, "/v1/users/signup/student", body)
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("signup failed! code = %v; body = %s", rec.Code, rec.Body.String())
	}
	created, _ := decodeRes(t, rec)
	otp := getAcct(t, created.ID).OTP

	verifyPath := func(id, code string) string {
		return "/v1/users/verify-otp?" + url.Values{"account_id": {id}, "otp": {code}}.Encode()
	}

	tests := []httpTest{
		{
			name: "missing params", method: http.MethodGet, path: "/v1/users/verify-otp",
			wantCode: http.StatusBadRequest, wantData: errBody(t, http.StatusBadRequest, "account_id and otp are required"),
		},
		{
			name: "wrong code", method: http.MethodGet, path: verifyPath(created.ID, "000000"),
			wantCode: http.StatusBadRequest, wantData: errBody(t, http.StatusBadRequest, "incorrect one-time code"),
		},
		{
			name: "ok", method: http.MethodGet, path: verifyPath(created.ID, otp),
			wantCode: http.StatusOK, wantData: successBody(t, nil, "account verified"),
		},
		{
			name: "replay fails", method: http.MethodGet, path: verifyPath(created.ID, otp),
			wantCode: http.StatusBadRequest, wantData: errBody(t, http.StatusBadRequest, "one-time code has expired"),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(tt.method, tt.path)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	if !getAcct(t, created.ID).Verified {
		t.Error("expected the account to be verified")
	}
}

func TestAccountAPI_resendOTP(t *testing.T) {
	resetDB(t)
	acct := createAccount(t, "Jane", "jane@test.local", "+254711111111", "LeP@ssw0rd",
		account.RoleStudent, account.ApprovalApproved, account.StatusActive)

	tests := []httpTest{
		{
			name: "unknown email", path: "/v1/users/resend-otp?email=nobody@test.local",
			wantCode: http.StatusNotFound, wantData: errBody(t, http.StatusNotFound, "account not found"),
		},
		{
			name: "missing email", path: "/v1/users/resend-otp",
			wantCode: http.StatusBadRequest, wantData: errBody(t, http.StatusBadRequest, "email is required"),
		},
		{
			name: "ok", path: "/v1/users/resend-otp?email=" + url.QueryEscape(acct.Email),
			wantCode: http.StatusOK, wantData: successBody(t, nil, "a new verification code has been sent"),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(http.MethodGet, tt.path)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	if getAcct(t, acct.ID).OTP == "" {
		t.Error("expected a code on the account")
	}
	if nmock.Count() != 1 {
		t.Errorf("notifications sent = %v; want 1", nmock.Count())
	}
}

func TestAccountAPI_passwordReset(t *testing.T) {
	resetDB(t)
	oldPwd, newPwd := "0ldP@ssw0rd", "N3wP@ssw0rd"
	acct := createVerified(t, "Jane", "jane@test.local", "+254711111111", oldPwd, account.RoleStudent)

	// an unknown email gets the same generic answer as a known one
	genericMsg := "If the email address supplied is associated with an account on this system, " +
		"an email will arrive in your inbox shortly with a code to reset your password."
	for _, email := range []string{"nobody@test.local", acct.Email} {
		req, rec := newRequest(http.MethodGet, "/v1/users/forgot-password?email="+url.QueryEscape(email))
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: successBody(t, nil, genericMsg)}, rec)
	}
	if nmock.Count() != 1 { // only the real account got a code
		t.Fatalf("notifications sent = %v; want 1", nmock.Count())
	}
	otp := getAcct(t, acct.ID).OTP

	resetBody := func(otp, pwd string) []byte {
		return marchallObj(t, account.ResetAccountPassword{
			AccountID: acct.ID, OTP: otp, Password: pwd, PasswordConfirm: pwd,
		})
	}

	tests := []httpTest{
		{
			name: "wrong code", body: resetBody("000000", newPwd),
			wantCode: http.StatusBadRequest, wantData: errBody(t, http.StatusBadRequest, "incorrect one-time code"),
		},
		{
			name: "ok", body: resetBody(otp, newPwd),
			wantCode: http.StatusOK, wantData: successBody(t, nil, "password has been reset with the new password"),
		},
		{
			name: "code is consumed", body: resetBody(otp, newPwd),
			wantCode: http.StatusBadRequest, wantData: errBody(t, http.StatusBadRequest, "one-time code has expired"),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(http.MethodPut, "/v1/users/reset-password", tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	final := getAcct(t, acct.ID)
	if final.CheckPassword(oldPwd) == nil {
		t.Error("old password still works")
	}
	if final.CheckPassword(newPwd) != nil {
		t.Error("new password does not work")
	}
}

func TestAccountAPI_me(t *testing.T) {
	resetDB(t)
	pwd := "LeP@ssw0rd"
	acct := createVerified(t, "Jane", "jane@test.local", "+254711111111", pwd, account.RoleStudent)
	token := getToken(t, acct)

	t.Run("update profile", func(t *testing.T) {
		body := marchallObj(t, map[string]string{"name": "Jane Doe", "address": "Nairobi"})
		req, rec := newAuthRequest(http.MethodPost, "/v1/users/me", token, body)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %v; body = %s", rec.Code, rec.Body.String())
		}
		got, msg := decodeRes(t, rec)
		if got.Name != "Jane Doe" || got.Address != "Nairobi" {
			t.Errorf("unexpected account %+v", got)
		}
		if got.Email != acct.Email {
			t.Errorf("email changed to %v", got.Email)
		}
		if msg != "profile updated" {
			t.Errorf("message = %q", msg)
		}
	})

	t.Run("change password", func(t *testing.T) {
		newPwd := "N3wP@ssw0rd"
		body := marchallObj(t, map[string]string{"password": newPwd, "password_confirm": newPwd})
		req, rec := newAuthRequest(http.MethodPut, "/v1/users/me/password", token, body)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: successBody(t, nil, "password changed")}, rec)

		updated := getAcct(t, acct.ID)
		if updated.CheckPassword(newPwd) != nil {
			t.Error("new password does not work")
		}
	})

	t.Run("delete account", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodDelete, "/v1/users/me", token)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: successBody(t, nil, "account deleted")}, rec)

		// the account is gone for good; the still-valid token now reads as removed
		req, rec = newAuthRequest(http.MethodGet, "/v1/users/me", token)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: 402, wantData: errBody(t, 402, "account removed by admin")}, rec)
	})
}
