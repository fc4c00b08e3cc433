// Package dynamo records run summaries in a DynamoDB table.
//
// Each run is registered once; a second registration of the same run id
// fails with ErrRunExists, so concurrent samplers cannot silently reuse an id.
//
// Table schema:
//   - Partition key: run_id (string)
//
// Create table with:
//
//	aws dynamodb create-table \
//	  --table-name rewardsearch-runs \
//	  --attribute-definitions AttributeName=run_id,AttributeType=S \
//	  --key-schema AttributeName=run_id,KeyType=HASH \
//	  --billing-mode PAY_PER_REQUEST
package dynamo

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/hupe1980/rewardsearch/trace"
)

var (
	// ErrRunExists is returned when registering a run id twice.
	ErrRunExists = errors.New("dynamo: run already registered")

	// ErrRunNotFound is returned for unknown run ids.
	ErrRunNotFound = errors.New("dynamo: run not found")
)

// Client is the subset of the DynamoDB API used by Ledger.
type Client interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
}

// Entry is a ledger row.
type Entry struct {
	Run        string
	Method     string
	Mode       string
	Particles  int
	Status     string
	CreatedAt  time.Time
	Steps      int
	Resamples  int
	BestStep   int
	BestReward float64
	FinishedAt time.Time
}

const (
	StatusRunning  = "running"
	StatusFinished = "finished"
)

// Ledger stores run entries in table.
type Ledger struct {
	client Client
	table  string
	now    func() time.Time
}

// NewLedger creates a ledger.
func NewLedger(client Client, table string) *Ledger {
	return &Ledger{client: client, table: table, now: time.Now}
}

// Register creates the entry for a new run.
func (l *Ledger) Register(ctx context.Context, run, method, mode string, particles int) error {
	_, err := l.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(l.table),
		Item: map[string]types.AttributeValue{
			"run_id":     &types.AttributeValueMemberS{Value: run},
			"method":     &types.AttributeValueMemberS{Value: method},
			"mode":       &types.AttributeValueMemberS{Value: mode},
			"particles":  &types.AttributeValueMemberN{Value: strconv.Itoa(particles)},
			"status":     &types.AttributeValueMemberS{Value: StatusRunning},
			"created_at": &types.AttributeValueMemberS{Value: l.now().UTC().Format(time.RFC3339Nano)},
		},
		ConditionExpression: aws.String("attribute_not_exists(run_id)"),
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return fmt.Errorf("%w: %s", ErrRunExists, run)
		}
		return fmt.Errorf("register run %s: %w", run, err)
	}
	return nil
}

// Finish stores the summary of a registered run.
func (l *Ledger) Finish(ctx context.Context, s trace.Summary) error {
	best := s.BestReward
	if math.IsInf(best, 0) || math.IsNaN(best) {
		best = 0
	}
	_, err := l.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(l.table),
		Key: map[string]types.AttributeValue{
			"run_id": &types.AttributeValueMemberS{Value: s.Run},
		},
		UpdateExpression: aws.String("SET #st = :st, steps = :steps, resamples = :res, best_step = :bs, best_reward = :br, finished_at = :fin"),
		ExpressionAttributeNames: map[string]string{
			"#st": "status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":st":    &types.AttributeValueMemberS{Value: StatusFinished},
			":steps": &types.AttributeValueMemberN{Value: strconv.Itoa(s.Steps)},
			":res":   &types.AttributeValueMemberN{Value: strconv.Itoa(s.Resamples)},
			":bs":    &types.AttributeValueMemberN{Value: strconv.Itoa(s.BestStep)},
			":br":    &types.AttributeValueMemberN{Value: strconv.FormatFloat(best, 'g', -1, 64)},
			":fin":   &types.AttributeValueMemberS{Value: l.now().UTC().Format(time.RFC3339Nano)},
		},
		ConditionExpression: aws.String("attribute_exists(run_id)"),
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return fmt.Errorf("%w: %s", ErrRunNotFound, s.Run)
		}
		return fmt.Errorf("finish run %s: %w", s.Run, err)
	}
	return nil
}

// Get returns the entry of run.
func (l *Ledger) Get(ctx context.Context, run string) (Entry, error) {
	resp, err := l.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(l.table),
		Key: map[string]types.AttributeValue{
			"run_id": &types.AttributeValueMemberS{Value: run},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return Entry{}, fmt.Errorf("get run %s: %w", run, err)
	}
	if len(resp.Item) == 0 {
		return Entry{}, fmt.Errorf("%w: %s", ErrRunNotFound, run)
	}
	return decodeEntry(resp.Item)
}

func decodeEntry(item map[string]types.AttributeValue) (Entry, error) {
	e := Entry{
		Run:    str(item, "run_id"),
		Method: str(item, "method"),
		Mode:   str(item, "mode"),
		Status: str(item, "status"),
	}
	var err error
	if e.Particles, err = intAttr(item, "particles"); err != nil {
		return Entry{}, err
	}
	if e.Steps, err = intAttr(item, "steps"); err != nil {
		return Entry{}, err
	}
	if e.Resamples, err = intAttr(item, "resamples"); err != nil {
		return Entry{}, err
	}
	if e.BestStep, err = intAttr(item, "best_step"); err != nil {
		return Entry{}, err
	}
	if v, ok := item["best_reward"].(*types.AttributeValueMemberN); ok {
		if e.BestReward, err = strconv.ParseFloat(v.Value, 64); err != nil {
			return Entry{}, fmt.Errorf("invalid best_reward: %w", err)
		}
	}
	if e.CreatedAt, err = timeAttr(item, "created_at"); err != nil {
		return Entry{}, err
	}
	if e.FinishedAt, err = timeAttr(item, "finished_at"); err != nil {
		return Entry{}, err
	}
	return e, nil
}

func str(item map[string]types.AttributeValue, key string) string {
	if v, ok := item[key].(*types.AttributeValueMemberS); ok {
		return v.Value
	}
	return ""
}

func intAttr(item map[string]types.AttributeValue, key string) (int, error) {
	v, ok := item[key].(*types.AttributeValueMemberN)
	if !ok {
		return 0, nil
	}
	n, err := strconv.Atoi(v.Value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func timeAttr(item map[string]types.AttributeValue, key string) (time.Time, error) {
	s := str(item, key)
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s: %w", key, err)
	}
	return t, nil
}
