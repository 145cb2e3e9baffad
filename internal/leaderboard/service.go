package leaderboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/gokatarajesh/trivia-arena/internal/round"
)

// ErrNoResult is returned by LastResult before any round was exported.
var ErrNoResult = errors.New("no round result exported")

// Entry represents a leaderboard record sent to clients.
type Entry struct {
	Rank   int    `json:"rank"`
	Player string `json:"player"`
	Score  int    `json:"score"`
	Wins   int    `json:"wins"`
	Rounds int    `json:"rounds"`
}

// ServiceOptions configures leaderboard export behavior.
type ServiceOptions struct {
	RedisKeyPrefix string
	ResultsChannel string
	// EntryTTL expires exported keys when > 0.
	EntryTTL time.Duration
}

// Service mirrors the live leaderboard into Redis after every round and
// publishes each result over Pub/Sub.
type Service struct {
	redis   *redis.Client
	logger  zerolog.Logger
	prefix  string
	channel string
	ttl     time.Duration
}

// NewService constructs a leaderboard service instance.
func NewService(client *redis.Client, logger zerolog.Logger, opts ServiceOptions) *Service {
	prefix := opts.RedisKeyPrefix
	if prefix == "" {
		prefix = "trivia"
	}
	channel := opts.ResultsChannel
	if channel == "" {
		channel = prefix + ":results"
	}
	return &Service{
		redis:   client,
		logger:  logger.With().Str("component", "leaderboard").Logger(),
		prefix:  prefix,
		channel: channel,
		ttl:     opts.EntryTTL,
	}
}

// Channel is the Pub/Sub channel results are published on.
func (s *Service) Channel() string {
	return s.channel
}

// RecordRound stores the standings carried by res and publishes res.
func (s *Service) RecordRound(ctx context.Context, res round.Result) error {
	payload, err := json.Marshal(res.Message())
	if err != nil {
		return fmt.Errorf("marshal round result: %w", err)
	}

	zKey := s.leaderboardKey()
	pipe := s.redis.TxPipeline()
	for _, st := range res.Leaderboard {
		metaKey := s.metaKey(st.Player)
		pipe.ZAdd(ctx, zKey, redis.Z{Score: float64(st.Score), Member: st.Player})
		pipe.HSet(ctx, metaKey, map[string]interface{}{
			"wins":   st.Wins,
			"rounds": st.Rounds,
		})
		pipe.SAdd(ctx, s.playersKey(), st.Player)
		if s.ttl > 0 {
			pipe.Expire(ctx, metaKey, s.ttl)
		}
	}
	pipe.Set(ctx, s.lastResultKey(), payload, s.ttl)
	if s.ttl > 0 {
		pipe.Expire(ctx, zKey, s.ttl)
		pipe.Expire(ctx, s.playersKey(), s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("export round %s: %w", res.QID, err)
	}

	if err := s.redis.Publish(ctx, s.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish round %s: %w", res.QID, err)
	}
	s.logger.Debug().Str("qid", res.QID).Int("players", len(res.Leaderboard)).Msg("round exported")
	return nil
}

// Top reads the exported standings, ordered like the live leaderboard.
// limit <= 0 returns everything.
func (s *Service) Top(ctx context.Context, limit int) ([]Entry, error) {
	results, err := s.redis.ZRevRangeWithScores(ctx, s.leaderboardKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("fetch leaderboard: %w", err)
	}

	entries := make([]Entry, 0, len(results))
	for _, z := range results {
		player, ok := z.Member.(string)
		if !ok {
			continue
		}
		entry, err := s.readMeta(ctx, player)
		if err != nil {
			s.logger.Warn().Err(err).Str("player", player).Msg("failed to read leaderboard metadata")
			continue
		}
		entry.Score = int(z.Score)
		entries = append(entries, entry)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Wins != b.Wins {
			return a.Wins > b.Wins
		}
		return a.Player < b.Player
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries, nil
}

// LastResult returns the JSON of the most recently exported round.
func (s *Service) LastResult(ctx context.Context) (json.RawMessage, error) {
	data, err := s.redis.Get(ctx, s.lastResultKey()).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNoResult
	}
	if err != nil {
		return nil, fmt.Errorf("fetch last result: %w", err)
	}
	return json.RawMessage(data), nil
}

// Clear deletes everything exported so far. It follows a full game reset.
func (s *Service) Clear(ctx context.Context) error {
	players, err := s.redis.SMembers(ctx, s.playersKey()).Result()
	if err != nil {
		return fmt.Errorf("list exported players: %w", err)
	}
	keys := []string{s.leaderboardKey(), s.lastResultKey(), s.playersKey()}
	for _, p := range players {
		keys = append(keys, s.metaKey(p))
	}
	if err := s.redis.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("clear leaderboard: %w", err)
	}
	s.logger.Info().Int("players", len(players)).Msg("exported leaderboard cleared")
	return nil
}

func (s *Service) readMeta(ctx context.Context, player string) (Entry, error) {
	data, err := s.redis.HGetAll(ctx, s.metaKey(player)).Result()
	if err != nil {
		return Entry{}, err
	}
	return Entry{
		Player: player,
		Wins:   parseInt(data["wins"]),
		Rounds: parseInt(data["rounds"]),
	}, nil
}

func (s *Service) leaderboardKey() string {
	return fmt.Sprintf("%s:leaderboard", s.prefix)
}

func (s *Service) metaKey(player string) string {
	return fmt.Sprintf("%s:player:%s", s.prefix, player)
}

func (s *Service) playersKey() string {
	return fmt.Sprintf("%s:players", s.prefix)
}

func (s *Service) lastResultKey() string {
	return fmt.Sprintf("%s:last_result", s.prefix)
}

func parseInt(val string) int {
	if val == "" {
		return 0
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return 0
	}
	return i
}
