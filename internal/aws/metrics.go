package aws

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

// MetricEmitter publishes custom counters to CloudWatch under one namespace.
type MetricEmitter struct {
	CloudWatch CloudWatchAPI
	Namespace  string
	nowFunc    func() time.Time
}

func NewMetricEmitter(cw CloudWatchAPI, namespace string) *MetricEmitter {
	return &MetricEmitter{CloudWatch: cw, Namespace: namespace, nowFunc: time.Now}
}

// Count publishes a single Count datapoint. dims is a flat name/value map.
func (m *MetricEmitter) Count(ctx context.Context, name string, value float64, dims map[string]string) error {
	datum := cwtypes.MetricDatum{
		MetricName: awsString(name),
		Value:      &value,
		Unit:       cwtypes.StandardUnitCount,
		Timestamp:  timePtr(m.nowFunc().UTC()),
	}
	for k, v := range dims {
		datum.Dimensions = append(datum.Dimensions, cwtypes.Dimension{
			Name:  awsString(k),
			Value: awsString(v),
		})
	}

	_, err := m.CloudWatch.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace:  awsString(m.Namespace),
		MetricData: []cwtypes.MetricDatum{datum},
	})
	if err != nil {
		return fmt.Errorf("put metric data %s: %w", name, err)
	}
	return nil
}

func timePtr(t time.Time) *time.Time { return &t }
