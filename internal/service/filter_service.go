package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/course-planner/internal/dto"
	"github.com/noah-isme/course-planner/internal/models"
	"github.com/noah-isme/course-planner/internal/repository"
	appErrors "github.com/noah-isme/course-planner/pkg/errors"
)

const (
	// LastFilteredIDsKey mirrors the last filter result in Redis.
	LastFilteredIDsKey = "planner:last_filtered_ids"
	replyCacheNS       = "planner:llm"

	apologyUnavailable = "Sorry, I could not reach the assistant right now and could not match your request. Please try again in a moment."
	apologyUnsafe      = "Sorry, I could not turn that request into a safe filter. Please try rephrasing it."
	apologyStore       = "Sorry, filtering failed while reading the saved schedules. Please try again."
)

// Reply sources reported to the caller.
const (
	SourceLLM      = "llm"
	SourceCache    = "cache"
	SourceFallback = "fallback"
	SourceNone     = "none"
)

// ScheduleQuerier is the read side of the schedule store used by the filter.
type ScheduleQuerier interface {
	Metadata(ctx context.Context) (string, error)
	ExecuteCustomQuery(ctx context.Context, query string, params []interface{}, semester models.Semester) (*repository.CustomQueryResult, error)
	IndexesForUniqueIDs(ctx context.Context, uniqueIDs []string) (map[string]int, error)
	Count(ctx context.Context, semester models.Semester) (int, error)
}

// Completer is a language model endpoint.
type Completer interface {
	Configured() bool
	Complete(ctx context.Context, system, user string) (string, error)
}

// FilterService turns natural-language requests into validated store queries.
type FilterService struct {
	store     ScheduleQuerier
	llm       Completer
	sql       *SQLValidator
	fallback  *FallbackMatcher
	cache     *CacheService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger

	mu      sync.RWMutex
	lastIDs []int
}

// NewFilterService constructs the filter pipeline. store may be nil when the
// process runs without persistence; every query then fails with a configuration error.
func NewFilterService(store ScheduleQuerier, llm Completer, cache *CacheService, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *FilterService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &FilterService{
		store:     store,
		llm:       llm,
		sql:       NewSQLValidator(logger),
		fallback:  NewFallbackMatcher(),
		cache:     cache,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
	}
}

// Query runs the whole pipeline for one user message.
func (s *FilterService) Query(ctx context.Context, req dto.BotQueryRequest) (*dto.BotQueryResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid bot query payload")
	}
	if s.store == nil {
		return nil, appErrors.Clone(appErrors.ErrConfiguration, "schedule store is unavailable; filtering is disabled")
	}

	metadata, err := s.store.Metadata(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to describe schedule store")
	}

	reply, source, err := s.ask(ctx, metadata, req.UserText)
	if err != nil {
		var appErr *appErrors.Error
		if errors.As(err, &appErr) && appErr.Code == appErrors.ErrConfiguration.Code {
			return nil, err
		}
		return &dto.BotQueryResponse{
			ResponseText: apologyUnavailable,
			HasError:     true,
			ErrorMessage: err.Error(),
			Source:       SourceNone,
		}, nil
	}

	if !reply.IsFilter() {
		if source == SourceLLM {
			s.cache.Set(ctx, CacheKey(replyCacheNS, metadata, req.UserText), reply, 0)
		}
		return &dto.BotQueryResponse{ResponseText: reply.Response, Source: source}, nil
	}

	query, err := s.sql.Validate(reply.SQL, len(reply.Params))
	if err != nil {
		reason := "invalid"
		var verr *ValidationError
		if errors.As(err, &verr) {
			reason = verr.Reason
		}
		s.metrics.RecordFilterRejection(reason)
		s.logger.Warn("filter query rejected", zap.String("reason", reason), zap.String("sql", reply.SQL), zap.String("source", source))
		return &dto.BotQueryResponse{
			ResponseText:  apologyUnsafe,
			SQL:           reply.SQL,
			IsFilterQuery: true,
			HasError:      true,
			ErrorMessage:  appErrors.Wrap(err, appErrors.ErrUnsafeQuery.Code, appErrors.ErrUnsafeQuery.Status, "query rejected").Error(),
			Source:        source,
		}, nil
	}
	if source == SourceLLM {
		s.cache.Set(ctx, CacheKey(replyCacheNS, metadata, req.UserText), reply, 0)
	}

	params := ConvertParams(reply.Params)
	matched, err := s.matchedIndexes(ctx, query, params, req.Semester)
	if err != nil {
		s.logger.Error("filter query failed", zap.String("sql", query), zap.Error(err))
		return &dto.BotQueryResponse{
			ResponseText:  apologyStore,
			SQL:           query,
			Parameters:    params,
			IsFilterQuery: true,
			HasError:      true,
			ErrorMessage:  err.Error(),
			Source:        source,
		}, nil
	}

	available := req.AvailableIDs
	total := len(available)
	if total == 0 {
		if total, err = s.store.Count(ctx, req.Semester); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to count schedules")
		}
	}
	filtered := intersect(matched, available)
	s.setLastFiltered(ctx, filtered)

	s.logger.Info("filter applied",
		zap.String("source", source),
		zap.Int("matched", len(matched)),
		zap.Int("filtered", len(filtered)),
		zap.Int("available", total),
	)

	return &dto.BotQueryResponse{
		ResponseText:  withMatchSummary(reply.Response, len(filtered), total),
		SQL:           query,
		Parameters:    params,
		IsFilterQuery: true,
		FilteredIDs:   filtered,
		Source:        source,
	}, nil
}

func (s *FilterService) ask(ctx context.Context, metadata, text string) (FilterReply, string, error) {
	if s.llm == nil || !s.llm.Configured() {
		if reply, ok := s.fallback.Match(text); ok {
			return reply, SourceFallback, nil
		}
		return FilterReply{}, SourceNone, appErrors.Clone(appErrors.ErrConfiguration, "ANTHROPIC_API_KEY is not configured")
	}

	var cached FilterReply
	if s.cache.Get(ctx, CacheKey(replyCacheNS, metadata, text), &cached) {
		return cached, SourceCache, nil
	}

	raw, err := s.llm.Complete(ctx, BuildFilterPrompt(metadata), text)
	if err != nil {
		s.logger.Warn("language model unavailable, trying fallback matcher", zap.Error(err))
		if reply, ok := s.fallback.Match(text); ok {
			return reply, SourceFallback, nil
		}
		return FilterReply{}, SourceNone, appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, "language model request failed")
	}
	return ParseFilterReply(raw), SourceLLM, nil
}

// matchedIndexes executes query within semester and returns schedule indexes
// in result order. Indexes repeat across semesters, so a row is only kept when
// its semester is the requested one.
func (s *FilterService) matchedIndexes(ctx context.Context, query string, params []interface{}, semester models.Semester) ([]int, error) {
	result, err := s.store.ExecuteCustomQuery(ctx, query, params, semester)
	if err != nil {
		return nil, err
	}

	if len(result.Indexes) > 0 {
		out := make([]int, 0, len(result.Indexes))
		for i, index := range result.Indexes {
			if semester != 0 && i < len(result.Semesters) && result.Semesters[i] != 0 && models.Semester(result.Semesters[i]) != semester {
				continue
			}
			out = append(out, index)
		}
		return out, nil
	}

	if len(result.UniqueIDs) == 0 {
		return nil, nil
	}
	resolved, err := s.store.IndexesForUniqueIDs(ctx, result.UniqueIDs)
	if err != nil {
		return nil, err
	}
	out := make([]int, 0, len(result.UniqueIDs))
	for _, uniqueID := range result.UniqueIDs {
		index, ok := resolved[uniqueID]
		if !ok {
			continue
		}
		if semester != 0 && semesterOfUniqueID(uniqueID) != semester {
			continue
		}
		out = append(out, index)
	}
	return out, nil
}

// LastFilteredIDs returns the ids of the most recent successful filter.
func (s *FilterService) LastFilteredIDs(ctx context.Context) []int {
	s.mu.RLock()
	if s.lastIDs != nil {
		ids := make([]int, len(s.lastIDs))
		copy(ids, s.lastIDs)
		s.mu.RUnlock()
		return ids
	}
	s.mu.RUnlock()

	var mirrored []int
	if s.cache.Get(ctx, LastFilteredIDsKey, &mirrored) {
		return mirrored
	}
	return []int{}
}

// ResetLastFiltered forgets the last filter result.
func (s *FilterService) ResetLastFiltered(ctx context.Context) {
	s.mu.Lock()
	s.lastIDs = nil
	s.mu.Unlock()
	s.cache.Delete(ctx, LastFilteredIDsKey)
}

func (s *FilterService) setLastFiltered(ctx context.Context, ids []int) {
	s.mu.Lock()
	s.lastIDs = make([]int, len(ids))
	copy(s.lastIDs, ids)
	s.mu.Unlock()
	s.cache.Set(ctx, LastFilteredIDsKey, ids, -1)
}

// intersect keeps matched ids present in available, in matched order without
// duplicates. An empty available list means every stored schedule.
func intersect(matched, available []int) []int {
	allowed := make(map[int]struct{}, len(available))
	for _, id := range available {
		allowed[id] = struct{}{}
	}
	seen := make(map[int]struct{}, len(matched))
	out := make([]int, 0, len(matched))
	for _, id := range matched {
		if _, dup := seen[id]; dup {
			continue
		}
		if len(available) > 0 {
			if _, ok := allowed[id]; !ok {
				continue
			}
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func withMatchSummary(response string, matched, total int) string {
	response = strings.TrimSpace(response)
	var suffix string
	if matched == 0 {
		suffix = "No schedules match these criteria."
	} else {
		suffix = fmt.Sprintf("%d of %d schedules match.", matched, total)
	}
	if response == "" {
		return suffix
	}
	return response + "\n\n" + suffix
}

func semesterOfUniqueID(uniqueID string) models.Semester {
	prefix, _, ok := strings.Cut(uniqueID, "_")
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(prefix)
	if err != nil {
		return 0
	}
	return models.Semester(n)
}
