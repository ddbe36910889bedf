package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/okian/lifeboat/internal/adapters/http/api"
	service "github.com/okian/lifeboat/internal/app"
	"github.com/okian/lifeboat/internal/domain/schema"
	"github.com/okian/lifeboat/internal/domain/scoring"
	"github.com/okian/lifeboat/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

const (
	femaleJSON = `{"pclass":1,"sex":"female","age":29,"sibsp":0,"parch":0,"fare":211.34,"embarked":"S"}`
	maleJSON   = `{"pclass":3,"sex":"male","age":22,"sibsp":1,"parch":0,"fare":7.25,"embarked":"S"}`
)

func newService(t *testing.T) *service.Service {
	t.Helper()
	m, err := scoring.New([]float64{-1.07, -0.039, -0.32, -0.087, 0.0027, -2.6, -0.069, -0.39}, 5.05)
	if err != nil {
		t.Fatalf("fixture model: %v", err)
	}
	svc, err := service.New(m, service.WithMaxBatchSize(8))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func newMux(deps api.Dependencies, opts ...api.Option) *http.ServeMux {
	mux := http.NewServeMux()
	api.NewServer(deps, opts...).Register(context.Background(), mux)
	return mux
}

func do(mux http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, http.NoBody)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

type violationBody struct {
	Code       string             `json:"code"`
	Violations []schema.Violation `json:"violations"`
}

func decodeViolations(w *httptest.ResponseRecorder) violationBody {
	var b violationBody
	_ = json.Unmarshal(w.Body.Bytes(), &b)
	return b
}

// failingService reports contract drift on every prediction.
type failingService struct {
	*service.Service
}

func (f failingService) Predict(context.Context, schema.PassengerRecord) (service.Result, error) {
	return service.Result{}, fmt.Errorf("score passenger: %w", scoring.ErrDimensionMismatch)
}

func TestServer_Predict(t *testing.T) {
	Convey("Given an API server over a real service", t, func() {
		mux := newMux(newService(t))

		Convey("When posting a valid passenger", func() {
			w := do(mux, http.MethodPost, "/predict", femaleJSON)

			Convey("Then it should return the decision and diagnostics", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Header().Get("Content-Type"), ShouldEqual, "application/json; charset=utf-8")
				So(w.Header().Get(api.RequestIDHeader), ShouldNotBeEmpty)

				var res service.Result
				So(json.Unmarshal(w.Body.Bytes(), &res), ShouldBeNil)
				So(res.Survived, ShouldBeTrue)
				So(res.Survived, ShouldEqual, res.Probability >= 0.5)
				So([]float64(res.Features), ShouldResemble, []float64{1, 29, 0, 0, 211.34, 0, 0, 1})
			})
		})

		Convey("When posting the same passenger twice", func() {
			var a, b service.Result
			So(json.Unmarshal(do(mux, http.MethodPost, "/predict", maleJSON).Body.Bytes(), &a), ShouldBeNil)
			So(json.Unmarshal(do(mux, http.MethodPost, "/predict", maleJSON).Body.Bytes(), &b), ShouldBeNil)

			Convey("Then the probabilities should be bit-identical", func() {
				So(math.Float64bits(a.Probability), ShouldEqual, math.Float64bits(b.Probability))
				So(a.Survived, ShouldBeFalse)
			})
		})

		Convey("When a field is out of domain", func() {
			body := strings.Replace(femaleJSON, `"age":29`, `"age":101`, 1)
			w := do(mux, http.MethodPost, "/predict", body)

			Convey("Then it should return 422 naming the field", func() {
				So(w.Code, ShouldEqual, http.StatusUnprocessableEntity)
				b := decodeViolations(w)
				So(b.Code, ShouldEqual, "validation_failed")
				So(b.Violations, ShouldResemble, []schema.Violation{{Field: "age", Reason: "must be at most 100"}})
			})
		})

		Convey("When fields are missing or wrongly typed", func() {
			w := do(mux, http.MethodPost, "/predict", `{"pclass":"first","sex":"male","age":null,"sibsp":0,"parch":0,"fare":7.25}`)

			Convey("Then every problem should be reported in field order", func() {
				So(w.Code, ShouldEqual, http.StatusUnprocessableEntity)
				So(decodeViolations(w).Violations, ShouldResemble, []schema.Violation{
					{Field: "pclass", Reason: "must be an integer"},
					{Field: "age", Reason: "is required"},
					{Field: "embarked", Reason: "is required"},
				})
			})
		})

		Convey("When pclass is fractional", func() {
			body := strings.Replace(femaleJSON, `"pclass":1`, `"pclass":1.5`, 1)
			w := do(mux, http.MethodPost, "/predict", body)

			Convey("Then it should be rejected as a type error", func() {
				So(w.Code, ShouldEqual, http.StatusUnprocessableEntity)
				So(decodeViolations(w).Violations[0], ShouldResemble, schema.Violation{Field: "pclass", Reason: "must be an integer"})
			})
		})

		Convey("When pclass is written as a float", func() {
			body := strings.Replace(femaleJSON, `"pclass":1`, `"pclass":1.0`, 1)
			w := do(mux, http.MethodPost, "/predict", body)

			Convey("Then it should not be coerced to an integer", func() {
				So(w.Code, ShouldEqual, http.StatusUnprocessableEntity)
				So(decodeViolations(w).Violations, ShouldResemble, []schema.Violation{{Field: "pclass", Reason: "must be an integer"}})
			})
		})

		Convey("When numbers are sent as strings", func() {
			cases := []struct {
				field, from, to string
			}{
				{"age", `"age":29`, `"age":"29"`},
				{"fare", `"fare":211.34`, `"fare":"cheap"`},
				{"sibsp", `"sibsp":0`, `"sibsp":"0"`},
			}

			Convey("Then each should be rejected instead of scored as zero", func() {
				for _, c := range cases {
					w := do(mux, http.MethodPost, "/predict", strings.Replace(femaleJSON, c.from, c.to, 1))
					So(w.Code, ShouldEqual, http.StatusUnprocessableEntity)
					So(w.Body.String(), ShouldNotContainSubstring, "probability")
					So(decodeViolations(w).Violations, ShouldHaveLength, 1)
					So(decodeViolations(w).Violations[0].Field, ShouldEqual, c.field)
				}
			})
		})

		Convey("When a string field holds a number", func() {
			w := do(mux, http.MethodPost, "/predict", strings.Replace(femaleJSON, `"sex":"female"`, `"sex":1`, 1))

			Convey("Then it should be a type violation", func() {
				So(w.Code, ShouldEqual, http.StatusUnprocessableEntity)
				So(decodeViolations(w).Violations, ShouldResemble, []schema.Violation{{Field: "sex", Reason: "must be a string"}})
			})
		})

		Convey("When the body is not JSON", func() {
			w := do(mux, http.MethodPost, "/predict", `{"pclass":`)

			Convey("Then it should return 400", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(w.Body.String(), ShouldContainSubstring, "bad_request")
			})
		})

		Convey("When the body is a JSON array", func() {
			w := do(mux, http.MethodPost, "/predict", `[1, 2]`)

			Convey("Then it should return 400", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When using GET on /predict", func() {
			w := do(mux, http.MethodGet, "/predict", "")

			Convey("Then it should return 405 with an Allow header", func() {
				So(w.Code, ShouldEqual, http.StatusMethodNotAllowed)
				So(w.Header().Get("Allow"), ShouldEqual, http.MethodPost)
			})
		})
	})

	Convey("Given a service that fails internally", t, func() {
		mux := newMux(failingService{newService(t)})

		Convey("When posting a valid passenger", func() {
			w := do(mux, http.MethodPost, "/predict", femaleJSON)

			Convey("Then it should fail closed with 500 and no probability", func() {
				So(w.Code, ShouldEqual, http.StatusInternalServerError)
				So(w.Body.String(), ShouldContainSubstring, "internal_error")
				So(w.Body.String(), ShouldNotContainSubstring, "probability")
			})
		})
	})
}

func TestServer_PredictBatch(t *testing.T) {
	Convey("Given an API server with a batch limit of three", t, func() {
		mux := newMux(newService(t), api.WithMaxBatchSize(3))

		Convey("When posting a mixed batch", func() {
			bad := strings.Replace(maleJSON, `"embarked":"S"`, `"embarked":"X"`, 1)
			body := fmt.Sprintf(`{"passengers":[%s, %s, %s]}`, femaleJSON, bad, `{"pclass":2}`)
			w := do(mux, http.MethodPost, "/predict/batch", body)

			Convey("Then each item should be decided independently in input order", func() {
				So(w.Code, ShouldEqual, http.StatusOK)

				var resp struct {
					Results []struct {
						Index       int      `json:"index"`
						Probability *float64 `json:"probability"`
						Survived    bool     `json:"survived"`
						Error       *violationBody
					} `json:"results"`
				}
				So(json.Unmarshal(w.Body.Bytes(), &resp), ShouldBeNil)
				So(resp.Results, ShouldHaveLength, 3)

				So(resp.Results[0].Index, ShouldEqual, 0)
				So(resp.Results[0].Probability, ShouldNotBeNil)
				So(resp.Results[0].Survived, ShouldBeTrue)
				So(resp.Results[0].Error, ShouldBeNil)

				So(resp.Results[1].Probability, ShouldBeNil)
				So(resp.Results[1].Error.Code, ShouldEqual, "validation_failed")
				So(resp.Results[1].Error.Violations[0].Field, ShouldEqual, "embarked")

				So(resp.Results[2].Error.Violations, ShouldHaveLength, 6)
			})
		})

		Convey("When the batch exceeds the limit", func() {
			body := fmt.Sprintf(`{"passengers":[%s, %s, %s, %s]}`, femaleJSON, femaleJSON, maleJSON, maleJSON)
			w := do(mux, http.MethodPost, "/predict/batch", body)

			Convey("Then it should be refused", func() {
				So(w.Code, ShouldEqual, http.StatusRequestEntityTooLarge)
				So(w.Body.String(), ShouldContainSubstring, "batch_too_large")
			})
		})

		Convey("When the batch is empty", func() {
			w := do(mux, http.MethodPost, "/predict/batch", `{"passengers":[]}`)

			Convey("Then it should return 400", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When using PUT on the batch route", func() {
			w := do(mux, http.MethodPut, "/predict/batch", `{}`)

			Convey("Then it should return 405", func() {
				So(w.Code, ShouldEqual, http.StatusMethodNotAllowed)
			})
		})
	})
}

func TestServer_ReadRoutes(t *testing.T) {
	Convey("Given an API server", t, func() {
		svc := newService(t)
		mux := newMux(svc)

		Convey("Then /healthz should report ok", func() {
			w := do(mux, http.MethodGet, "/healthz", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, `"status":"ok"`)
		})

		Convey("Then /model should describe the served parameters", func() {
			w := do(mux, http.MethodGet, "/model", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			var info service.ModelInfo
			So(json.Unmarshal(w.Body.Bytes(), &info), ShouldBeNil)
			So(info.Features, ShouldResemble, schema.FeatureOrder())
			So(info.Bias, ShouldEqual, 5.05)
			So(info.Threshold, ShouldEqual, 0.5)
		})

		Convey("Then /schema should list fields and feature order", func() {
			w := do(mux, http.MethodGet, "/schema", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			var body struct {
				Fields       []schema.FieldSpec `json:"fields"`
				FeatureOrder []string           `json:"feature_order"`
			}
			So(json.Unmarshal(w.Body.Bytes(), &body), ShouldBeNil)
			So(body.Fields, ShouldHaveLength, 7)
			So(body.Fields[0].Name, ShouldEqual, "pclass")
			So(body.FeatureOrder, ShouldResemble, schema.FeatureOrder())
		})

		Convey("Then /stats should reflect traffic", func() {
			do(mux, http.MethodPost, "/predict", femaleJSON)
			w := do(mux, http.MethodGet, "/stats", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			var stats map[string]interface{}
			So(json.Unmarshal(w.Body.Bytes(), &stats), ShouldBeNil)
			So(stats["predictions"], ShouldEqual, 1.0)
			So(stats["featureCount"], ShouldEqual, 8.0)
		})

		Convey("Then /metrics should expose prometheus text", func() {
			do(mux, http.MethodPost, "/predict", maleJSON)
			w := do(mux, http.MethodGet, "/metrics", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, "lifeboat_predictor_predictions_total")
			So(w.Body.String(), ShouldContainSubstring, "lifeboat_predictor_http_requests_total")
		})

		Convey("Then POST on a read route should return 405", func() {
			w := do(mux, http.MethodPost, "/model", "{}")
			So(w.Code, ShouldEqual, http.StatusMethodNotAllowed)
		})

		Convey("Then unknown routes should return 404", func() {
			w := do(mux, http.MethodGet, "/unknown", "")
			So(w.Code, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestRequestIDMiddleware(t *testing.T) {
	Convey("Given the request id middleware", t, func() {
		var seen string
		h := api.RequestIDMiddleware(func(w http.ResponseWriter, r *http.Request) {
			seen = api.RequestIDFromContext(r.Context())
		})

		Convey("When the client sends an id", func() {
			req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
			req.Header.Set(api.RequestIDHeader, "client-42")
			w := httptest.NewRecorder()
			h(w, req)

			Convey("Then it should be propagated", func() {
				So(seen, ShouldEqual, "client-42")
				So(w.Header().Get(api.RequestIDHeader), ShouldEqual, "client-42")
			})
		})

		Convey("When the client sends none", func() {
			w := httptest.NewRecorder()
			h(w, httptest.NewRequest(http.MethodGet, "/", http.NoBody))

			Convey("Then a uuid should be minted", func() {
				So(seen, ShouldHaveLength, 36)
				So(w.Header().Get(api.RequestIDHeader), ShouldEqual, seen)
			})
		})
	})
}

func TestRateLimiter(t *testing.T) {
	Convey("Given a limiter with a burst of two and a slow refill", t, func() {
		l := api.NewRateLimiter(0.001, 2)

		Convey("Then each client should get its own bucket", func() {
			So(l.Allow("10.0.0.1"), ShouldBeTrue)
			So(l.Allow("10.0.0.1"), ShouldBeTrue)
			So(l.Allow("10.0.0.1"), ShouldBeFalse)
			So(l.Allow("10.0.0.2"), ShouldBeTrue)
		})

		Convey("When wired into the server", func() {
			mux := newMux(newService(t), api.WithRateLimiter(l))
			codes := make([]int, 3)
			for i := range codes {
				codes[i] = do(mux, http.MethodPost, "/predict", femaleJSON).Code
			}

			Convey("Then requests over budget should get 429", func() {
				So(codes, ShouldResemble, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests})
			})

			Convey("Then read routes should not be limited", func() {
				So(do(mux, http.MethodGet, "/healthz", "").Code, ShouldEqual, http.StatusOK)
			})
		})
	})

	Convey("Given a zero rate", t, func() {
		Convey("Then limiting should be disabled", func() {
			l := api.NewRateLimiter(0, 10)
			So(l, ShouldBeNil)
			called := false
			l.Middleware(func(http.ResponseWriter, *http.Request) { called = true })(httptest.NewRecorder(),
				httptest.NewRequest(http.MethodGet, "/", http.NoBody))
			So(called, ShouldBeTrue)
		})
	})
}

func TestWrapKind(t *testing.T) {
	Convey("Given an error wrapped with a kind", t, func() {
		cause := errors.New("boom")
		err := api.WrapKind("api.op", api.ErrBadRequest, cause)

		Convey("Then both the kind and the cause should be in the chain", func() {
			So(errors.Is(err, api.ErrBadRequest), ShouldBeTrue)
			So(errors.Is(err, cause), ShouldBeTrue)
			So(err.Error(), ShouldStartWith, "api.op: ")
		})

		Convey("Then NewKind should carry only the kind", func() {
			So(errors.Is(api.NewKind("api.op", api.ErrRateLimited), api.ErrRateLimited), ShouldBeTrue)
		})
	})
}
