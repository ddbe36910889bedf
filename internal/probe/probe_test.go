package probe

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/okian/lifeboat/internal/adapters/http/api"
	service "github.com/okian/lifeboat/internal/app"
	"github.com/okian/lifeboat/internal/domain/scoring"
	"github.com/okian/lifeboat/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func newPredictorServer(t *testing.T) *httptest.Server {
	t.Helper()
	m, err := scoring.New([]float64{-1.07, -0.039, -0.32, -0.087, 0.0027, -2.6, -0.069, -0.39}, 5.05)
	if err != nil {
		t.Fatalf("fixture model: %v", err)
	}
	svc, err := service.New(m)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	mux := http.NewServeMux()
	api.NewServer(svc).Register(context.Background(), mux)
	return httptest.NewServer(mux)
}

func testConfig(url string) *Config {
	return &Config{
		BaseURL:      url,
		Passengers:   60,
		InvalidRatio: 0.3,
		Repeat:       3,
		Workers:      4,
		Timeout:      5 * time.Second,
		Verbose:      true,
	}
}

func TestGenerateCases(t *testing.T) {
	Convey("Given generated passengers", t, func() {
		Convey("When no case is broken", func() {
			cases := generateCases(200, 0)

			Convey("Then every passenger should be complete and in domain", func() {
				So(cases, ShouldHaveLength, 200)
				seen := map[string]bool{}
				for _, c := range cases {
					So(c.Valid(), ShouldBeTrue)
					So(seen[c.ID], ShouldBeFalse)
					seen[c.ID] = true

					p := c.Passenger
					So(p, ShouldHaveLength, 7)
					So(p["pclass"], ShouldBeBetweenOrEqual, 1, 3)
					So(p["age"], ShouldBeBetweenOrEqual, 0.0, 100.0)
					So(p["fare"], ShouldBeBetweenOrEqual, 0.0, 500.0)
					So(p["sibsp"], ShouldBeBetweenOrEqual, 0, 10)
					So(p["parch"], ShouldBeBetweenOrEqual, 0, 10)
					So([]string{"S", "C", "Q"}, ShouldContain, p["embarked"])
				}
			})
		})

		Convey("When every case is broken", func() {
			cases := generateCases(50, 1)

			Convey("Then each should name the field it broke", func() {
				for _, c := range cases {
					So(c.Valid(), ShouldBeFalse)
					So([]string{"age", "pclass", "embarked", "sex", "fare", "sibsp", "parch"}, ShouldContain, c.WantField)
				}
			})
		})

		Convey("When half the cases are broken", func() {
			cases := generateCases(70, 0.5)

			Convey("Then every field should be broken the same number of times", func() {
				broken := map[string]int{}
				for _, c := range cases {
					if !c.Valid() {
						broken[c.WantField]++
					}
				}
				So(broken, ShouldResemble, map[string]int{
					"age": 5, "pclass": 5, "embarked": 5, "sex": 5, "fare": 5, "sibsp": 5, "parch": 5,
				})
			})

			Convey("Then broken cases should be interleaved with valid ones", func() {
				for i := 0; i < len(cases); i += 2 {
					So(cases[i].Valid(), ShouldBeTrue)
					So(cases[i+1].Valid(), ShouldBeFalse)
				}
			})
		})

		Convey("When the ratio is out of range", func() {
			Convey("Then it should be clamped", func() {
				for _, c := range generateCases(10, 2) {
					So(c.Valid(), ShouldBeFalse)
				}
				for _, c := range generateCases(10, -1) {
					So(c.Valid(), ShouldBeTrue)
				}
			})
		})
	})
}

func TestMutate(t *testing.T) {
	Convey("Given a valid passenger", t, func() {
		p := generatePassenger()

		Convey("Then removing sex should leave six fields", func() {
			So(mutate(p, 3), ShouldEqual, "sex")
			So(p, ShouldNotContainKey, "sex")
			So(p, ShouldHaveLength, 6)
		})

		Convey("Then the age mutation should leave the domain", func() {
			So(mutate(p, 0), ShouldEqual, "age")
			So(p["age"], ShouldBeGreaterThan, 100.0)
		})

		Convey("Then the fare mutation should change the type", func() {
			So(mutate(p, 4), ShouldEqual, "fare")
			So(p["fare"], ShouldEqual, "cheap")
		})
	})
}

func TestVerification(t *testing.T) {
	Convey("Given prediction responses", t, func() {
		ok := `{"probability":0.7,"survived":true,"linear_score":0.85,"features":[1,29,0,0,211.34,0,0,1]}`

		Convey("Then a consistent prediction should pass", func() {
			p, err := verifyPrediction(response{status: http.StatusOK, body: []byte(ok)})
			So(err, ShouldBeNil)
			So(p.Probability, ShouldEqual, 0.7)
		})

		Convey("Then a decision that disagrees with the threshold should fail", func() {
			body := `{"probability":0.2,"survived":true,"features":[1,2,3,4,5,6,7,8]}`
			_, err := verifyPrediction(response{status: http.StatusOK, body: []byte(body)})
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "disagrees")
		})

		Convey("Then exactly one half should count as survived", func() {
			body := `{"probability":0.5,"survived":true,"features":[1,2,3,4,5,6,7,8]}`
			_, err := verifyPrediction(response{status: http.StatusOK, body: []byte(body)})
			So(err, ShouldBeNil)
		})

		Convey("Then a non-200 should fail", func() {
			_, err := verifyPrediction(response{status: http.StatusInternalServerError, body: []byte(`{}`)})
			So(err, ShouldNotBeNil)
		})

		Convey("Then a rejection must name the broken field", func() {
			body := []byte(`{"code":"validation_failed","violations":[{"field":"age","reason":"must be at most 100"}]}`)
			So(verifyRejection(response{status: http.StatusUnprocessableEntity, body: body}, "age"), ShouldBeNil)
			So(verifyRejection(response{status: http.StatusUnprocessableEntity, body: body}, "fare"), ShouldNotBeNil)
			So(verifyRejection(response{status: http.StatusOK, body: []byte(ok)}, "age"), ShouldNotBeNil)
		})

		Convey("Then repeats must be bit-identical", func() {
			So(verifyRepeat(Prediction{Probability: 0.3}, Prediction{Probability: 0.3}), ShouldBeNil)
			So(verifyRepeat(Prediction{Probability: 0.3}, Prediction{Probability: 0.30000000000000004}), ShouldNotBeNil)
		})
	})
}

func TestRun(t *testing.T) {
	Convey("Given a running predictor", t, func() {
		srv := newPredictorServer(t)
		defer srv.Close()

		Convey("When probing it", func() {
			stats, err := Run(context.Background(), testConfig(srv.URL))

			Convey("Then every case should pass", func() {
				So(err, ShouldBeNil)
				So(stats.Cases, ShouldEqual, 60)
				So(stats.Valid+stats.Invalid, ShouldEqual, 60)
				So(stats.Passed, ShouldEqual, 60)
				So(stats.Failed, ShouldEqual, 0)
				So(stats.Requests, ShouldEqual, stats.Invalid+3*stats.Valid)
				So(stats.Invalid, ShouldBeBetweenOrEqual, 17, 18)
			})
		})
	})

	Convey("Given a service that scores everything the same", t, func() {
		mux := http.NewServeMux()
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		})
		mux.HandleFunc("/predict", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"probability":0.9,"survived":true,"features":[0,0,0,0,0,0,0,0]}`))
		})
		srv := httptest.NewServer(mux)
		defer srv.Close()

		Convey("When probing with broken passengers", func() {
			cfg := testConfig(srv.URL)
			cfg.InvalidRatio = 1
			stats, err := Run(context.Background(), cfg)

			Convey("Then the run should fail verification", func() {
				So(errors.Is(err, ErrVerificationFailed), ShouldBeTrue)
				So(stats.Failed, ShouldEqual, 60)
			})
		})
	})

	Convey("Given an unhealthy service", t, func() {
		srv := httptest.NewServer(http.NotFoundHandler())
		defer srv.Close()

		Convey("Then the run should stop at the health check", func() {
			_, err := Run(context.Background(), testConfig(srv.URL))
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "health check")
		})
	})
}
