package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/okian/lifeboat/internal/domain/schema"
	"github.com/okian/lifeboat/internal/domain/scoring"
	"github.com/okian/lifeboat/pkg/logger"
	"github.com/okian/lifeboat/pkg/tracing"
	. "github.com/smartystreets/goconvey/convey"
)

func TestService_DimensionMismatch(t *testing.T) {
	Convey("Given a service whose model drifted from the encoder", t, func() {
		So(logger.Init(), ShouldBeNil)
		m, err := scoring.New([]float64{1, 2, 3, 4, 5, 6, 7}, 0)
		So(err, ShouldBeNil)

		// New refuses this model, so build the drifted service by hand.
		svc := &Service{
			model:        m,
			schema:       schema.New(),
			maxBatchSize: defaultMaxBatchSize,
			startedAt:    time.Now(),
			logger:       logger.Get(),
			tracer:       tracing.Tracer(),
		}

		Convey("When predicting a valid record", func() {
			rec := schema.PassengerRecord{Pclass: 2, Sex: schema.SexFemale, Age: 14, SibSp: 1, Fare: 30.07, Embarked: schema.PortCherbourg}
			res, err := svc.Predict(context.Background(), rec)

			Convey("Then it should fail closed with a dimension mismatch", func() {
				So(errors.Is(err, scoring.ErrDimensionMismatch), ShouldBeTrue)
				So(res, ShouldResemble, Result{})
				So(svc.failed.Load(), ShouldEqual, 1)
				So(svc.predictions.Load(), ShouldEqual, 0)
			})
		})
	})
}
