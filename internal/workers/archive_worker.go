package workers

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/soriai/sori/internal/audio"
	"github.com/soriai/sori/internal/services"
	"github.com/soriai/sori/internal/storage"
)

// ArchiveWorkerPool drains the turn-audio stream: each job is one
// recorded legacy turn, uploaded as WAV and marked in the archive
// metadata store. Failures only affect the archive copy, never the
// conversation.
type ArchiveWorkerPool struct {
	Redis    *redis.Client
	Archives services.ArchiveService
	Uploader storage.Uploader

	NumWorkers int
	Logger     *logrus.Logger

	Stream         string
	Group          string
	ConsumerPrefix string
}

func (p *ArchiveWorkerPool) Start(ctx context.Context) error {
	if p.Redis == nil || p.Archives == nil || p.Uploader == nil {
		return errors.New("ArchiveWorkerPool missing dependency: Redis/Archives/Uploader must be set")
	}
	if p.Stream == "" {
		p.Stream = services.ArchiveStream
	}
	if p.Group == "" {
		p.Group = "archive-workers"
	}
	if p.ConsumerPrefix == "" {
		p.ConsumerPrefix = "c"
	}
	if p.NumWorkers <= 0 {
		p.NumWorkers = 3
	}
	if p.Logger == nil {
		p.Logger = logrus.New()
	}

	_ = p.Redis.XGroupCreateMkStream(ctx, p.Stream, p.Group, "0").Err() // ignore BUSYGROUP

	for i := 0; i < p.NumWorkers; i++ {
		consumer := p.ConsumerPrefix + "-" + strconv.Itoa(i+1)
		go p.runConsumer(ctx, consumer)
	}
	return nil
}

func (p *ArchiveWorkerPool) runConsumer(ctx context.Context, consumer string) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		res, err := p.Redis.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    p.Group,
			Consumer: consumer,
			Streams:  []string{p.Stream, ">"},
			Count:    10,
			Block:    5 * time.Second,
		}).Result()

		if err != nil {
			if err == redis.Nil {
				continue
			}
			time.Sleep(500 * time.Millisecond)
			continue
		}

		for _, stream := range res {
			for _, msg := range stream.Messages {
				p.handleMsg(ctx, msg)
				_ = p.Redis.XAck(ctx, p.Stream, p.Group, msg.ID).Err()
			}
		}
	}
}

func (p *ArchiveWorkerPool) handleMsg(ctx context.Context, msg redis.XMessage) {
	getStr := func(k string) string {
		v, ok := msg.Values[k]
		if !ok || v == nil {
			return ""
		}
		s, _ := v.(string)
		return s
	}

	sessionID := getStr("session_id")
	turnIndexStr := getStr("turn_index")
	if sessionID == "" || turnIndexStr == "" {
		return
	}
	turnIndex, _ := strconv.ParseInt(turnIndexStr, 10, 64)

	log := p.Logger.WithFields(logrus.Fields{
		"redis_id":   msg.ID,
		"session_id": sessionID,
		"turn_index": turnIndex,
	})

	pcm, err := base64.StdEncoding.DecodeString(getStr("pcm_base64"))
	if err != nil || len(pcm) == 0 {
		log.Warn("archive job has no decodable pcm")
		_ = p.Archives.MarkUploaded(ctx, sessionID, turnIndex, "", "failed")
		return
	}

	sampleRate, _ := strconv.Atoi(getStr("sample_rate"))
	if sampleRate <= 0 {
		sampleRate = 24000
	}

	wav := audio.WrapWAV(pcm, sampleRate)
	objectName := "turns/" + sessionID + "/" + turnIndexStr + ".wav"

	url, err := p.Uploader.Upload(ctx, objectName, "audio/wav", bytes.NewReader(wav))
	if err != nil {
		log.WithError(err).Error("archive upload failed")
		_ = p.Archives.MarkUploaded(ctx, sessionID, turnIndex, "", "failed")
		return
	}

	if err := p.Archives.MarkUploaded(ctx, sessionID, turnIndex, url, "uploaded"); err != nil {
		log.WithError(err).Error("archive mark failed")
		return
	}

	log.WithField("url", url).Debug("turn audio archived")
}
