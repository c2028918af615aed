package tests

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"reflect"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	. "github.com/trezcool/darasa/apps/api/echo"
	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/account"
	"github.com/trezcool/darasa/storage/database/inmem"
	testutil "github.com/trezcool/darasa/tests"
)

var (
	db       *inmemdb.DB
	acctRepo account.Repository
	acctSvc  account.ServiceInterface
	nmock    *testutil.NotifierMock
	conf     *core.Config
	app      Server

	ctx = context.Background()

	errMissingToken = jsonErr{http.StatusUnauthorized, "authentication required"}
)

func TestMain(m *testing.M) {
	conf = &core.Config{
		AppName:            "Darasa",
		Env:                "TEST",
		TestMode:           true,
		SecretKey:          "s3kr3t-t3st-k3y",
		OTPExpirationDelta: 5 * time.Minute,
		OTPResendCooldown:  time.Minute,
		OTPLength:          6,
		Server: core.ServerConfig{
			JWTExpirationDelta: time.Hour,
		},
	}

	// set up DB & repos
	db = inmemdb.NewDB()
	acctRepo = inmemdb.NewAccountRepository(db)

	// set up services
	nmock = &testutil.NotifierMock{}
	acctSvc = account.NewService(acctRepo, nmock, conf)

	validate := validator.New()
	lang := en.New()
	translator, _ := ut.New(lang, lang).GetTranslator(lang.Locale())
	core.InitValidators(validate, translator)
	account.InitValidators(validate, translator)

	// set up server
	app = NewServer(ServerDeps{
		Conf:           conf,
		Logger:         &testutil.LoggerMock{},
		AccountSvc:     acctSvc,
		Validate:       validate,
		Translator:     translator,
		DisableReqLogs: true,
	})

	os.Exit(m.Run())
}

func resetDB(t *testing.T) {
	t.Helper()
	db.Reset()
	nmock.Clear()
}

type (
	jsonRes struct {
		Data    interface{} `json:"data,omitempty"`
		Message string      `json:"message,omitempty"`
	}

	jsonErr struct {
		ResponseCode    int         `json:"responseCode"`
		ResponseMessage interface{} `json:"responseMessage"`
	}

	httpTest struct {
		name     string
		method   string
		path     string
		body     []byte
		token    string
		wantCode int
		wantData []byte
		extra    interface{}
	}
)

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

func getToken(t *testing.T, acct account.Account) string {
	t.Helper()
	token, err := GenerateToken(GetAccountClaims(acct, conf), conf)
	if err != nil {
		t.Fatalf("getToken(): %v", err)
	}
	return token
}

func createAccount(t *testing.T, name, email, phone, pwd, role, approval, status string) account.Account {
	t.Helper()
	return testutil.CreateAccount(t, acctRepo, name, email, phone, pwd, role, approval, status)
}

// createVerified sets up an account that can pass every login gate.
func createVerified(t *testing.T, name, email, phone, pwd, role string) account.Account {
	t.Helper()
	acct := createAccount(t, name, email, phone, pwd, role, account.ApprovalApproved, account.StatusActive)
	acct.Verified = true
	acct, err := acctRepo.UpdateAccount(ctx, acct)
	if err != nil {
		t.Fatalf("createVerified(): %v", err)
	}
	return acct
}

func getAcct(t *testing.T, id string) account.Account {
	t.Helper()
	acct, err := acctRepo.GetAccount(ctx, account.GetFilter{ID: id, IncludeDeleted: true})
	if err != nil {
		t.Fatalf("getAcct(): %v", err)
	}
	return acct
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj(): %v", err)
	}
	return data
}

func successBody(t *testing.T, data interface{}, msg string) []byte {
	return marchallObj(t, jsonRes{Data: data, Message: msg})
}

func errBody(t *testing.T, code int, msg interface{}) []byte {
	return marchallObj(t, jsonErr{ResponseCode: code, ResponseMessage: msg})
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

// decodeRes unmarshals a success envelope whose data is an account.
func decodeRes(t *testing.T, rec *httptest.ResponseRecorder) (account.Account, string) {
	t.Helper()
	var res struct {
		Data    account.Account `json:"data"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decodeRes(): %v; body = %s", err, rec.Body.String())
	}
	return res.Data, res.Message
}
