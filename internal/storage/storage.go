package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/LJTian/NewsRadar/internal/processor"
	"github.com/redis/go-redis/v9"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// ErrConflict 追加时发现 ID 或 (源, 规范链接) 已存在。
// 这是查重器之外的最后一道防线，上层按重复计数，不升级为错误
var ErrConflict = errors.New("article already exists")

// Article 持久化的文章记录。入库后不可变，核心流水线不做更新；
// TLDR / ImpactedStocks 是外围打标服务补写的增强字段
type Article struct {
	ID           string `gorm:"primaryKey;size:40" json:"id"`
	Source       string `gorm:"size:64;index;uniqueIndex:idx_articles_source_url" json:"source"`
	SourceName   string `gorm:"size:128" json:"sourceName"`
	Title        string `gorm:"size:512" json:"title"`
	URL          string `gorm:"size:1024" json:"url"`
	CanonicalURL string `gorm:"size:1024;uniqueIndex:idx_articles_source_url" json:"canonicalUrl"`
	// PublishedAt 解析失败时为 NULL，展示层自行兜底
	PublishedAt *time.Time `gorm:"index" json:"publishedAt"`
	Summary     string     `gorm:"size:600" json:"summary"`
	ScrapedAt   time.Time  `gorm:"index" json:"scrapedAt"`

	TLDR           string         `gorm:"size:600" json:"tldr,omitempty"`
	ImpactedStocks datatypes.JSON `gorm:"type:jsonb" json:"impactedStocks,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type Store struct {
	DB    *gorm.DB
	Redis *redis.Client
}

func NewStore(dsn, redisAddr string) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(&Article{}); err != nil {
		return nil, err
	}

	var rdb *redis.Client
	if redisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: redisAddr})

		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Printf("warn: redis ping failed: %v", err)
		}
	}

	return &Store{DB: db, Redis: rdb}, nil
}

// toValidUTF8 规范为合法 UTF-8，避免 PostgreSQL invalid byte sequence 错误
func toValidUTF8(s string) string {
	return strings.ToValidUTF8(s, "�")
}

// truncateRunesDB 按 rune 数截断，确保不超过数据库字段长度。
// 上游 processor 已经截断过，这里是入库前的双保险
func truncateRunesDB(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	s = strings.TrimSpace(s)
	rs := []rune(s)
	if len(rs) <= limit {
		return s
	}
	return string(rs[:limit])
}

// Append 持久化一篇新文章。ID 或 (源, 规范链接) 已存在时返回 ErrConflict；
// 单条 Create 落库，读者不会看到写了一半的行
func (s *Store) Append(a *processor.Article) error {
	var count int64
	if err := s.DB.Model(&Article{}).
		Where("id = ? OR (source = ? AND canonical_url = ?)", a.ID, a.Source, a.CanonicalURL).
		Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return ErrConflict
	}

	row := &Article{
		ID:           a.ID,
		Source:       a.Source,
		SourceName:   toValidUTF8(a.SourceName),
		Title:        truncateRunesDB(toValidUTF8(a.Title), 512),
		URL:          a.URL,
		CanonicalURL: a.CanonicalURL,
		PublishedAt:  a.PublishedAt,
		Summary:      truncateRunesDB(toValidUTF8(a.Summary), 600),
		ScrapedAt:    a.ScrapedAt,
	}

	if err := s.DB.Create(row).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrConflict
		}
		return err
	}
	return nil
}

// List 按抓取时间倒序返回文章，source 可为空表示全部源；
// 首页（offset=0）走 Redis 短 TTL 缓存，翻页直接查库
func (s *Store) List(source string, limit, offset int) ([]Article, error) {
	if limit <= 0 || limit > 1000 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	ctx := context.Background()
	cacheKey := fmt.Sprintf("articles:list:%s:%d", source, limit)

	if s.Redis != nil && offset == 0 {
		if bs, err := s.Redis.Get(ctx, cacheKey).Bytes(); err == nil {
			var cached []Article
			if err := json.Unmarshal(bs, &cached); err == nil {
				return cached, nil
			}
		}
	}

	var list []Article
	db := s.DB.Model(&Article{})
	if source != "" {
		db = db.Where("source = ?", source)
	}
	if err := db.Order("scraped_at DESC").Order("id ASC").
		Limit(limit).Offset(offset).Find(&list).Error; err != nil {
		return nil, err
	}

	const listCacheTTL = 5 * time.Minute
	if s.Redis != nil && offset == 0 && len(list) > 0 {
		if bs, err := json.Marshal(list); err == nil {
			_ = s.Redis.Set(ctx, cacheKey, bs, listCacheTTL).Err()
		}
	}

	return list, nil
}

// GetByID 按 ID 取单篇，不存在返回 gorm.ErrRecordNotFound
func (s *Store) GetByID(id string) (*Article, error) {
	var a Article
	if err := s.DB.Where("id = ?", id).First(&a).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

// CountsBySource 各源的文章数
func (s *Store) CountsBySource() (map[string]int64, error) {
	var rows []struct {
		Source string
		Cnt    int64
	}
	if err := s.DB.Model(&Article{}).
		Select("source, count(*) as cnt").
		Group("source").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	counts := make(map[string]int64, len(rows))
	for _, r := range rows {
		counts[r.Source] = r.Cnt
	}
	return counts, nil
}

// LastUpdated 最近一次成功入库的抓取时间，空库返回 nil
func (s *Store) LastUpdated() (*time.Time, error) {
	var a Article
	err := s.DB.Order("scraped_at DESC").First(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	t := a.ScrapedAt
	return &t, nil
}

// ListUntagged 返回尚未打标的最近文章，供外围打标服务消费
func (s *Store) ListUntagged(limit int) ([]Article, error) {
	if limit <= 0 || limit > 1000 {
		limit = 50
	}
	var list []Article
	if err := s.DB.Where("tldr = ''").
		Order("scraped_at DESC").
		Limit(limit).
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

// ListSince 返回某时间之后抓取的文章，按抓取时间倒序
func (s *Store) ListSince(since time.Time, limit int) ([]Article, error) {
	if limit <= 0 || limit > 1000 {
		limit = 50
	}
	var list []Article
	if err := s.DB.Where("scraped_at >= ?", since).
		Order("scraped_at DESC").
		Limit(limit).
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

// SaveEnrichment 外围打标服务回写 TLDR 与受影响股票，核心流水线不调用
func (s *Store) SaveEnrichment(id, tldr string, impactedStocks []byte) error {
	updates := map[string]any{
		"tldr": truncateRunesDB(toValidUTF8(tldr), 600),
	}
	if len(impactedStocks) > 0 {
		updates["impacted_stocks"] = datatypes.JSON(impactedStocks)
	}
	return s.DB.Model(&Article{}).Where("id = ?", id).Updates(updates).Error
}
