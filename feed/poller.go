package feed

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tsinghua-fib-lab/agentsociety-crossroad/entity"
	"github.com/tsinghua-fib-lab/agentsociety-crossroad/utils/config"
)

// 响应体大小上限
const maxBodySize = 1 << 20

// Poller HTTP轮询
// 功能：按固定间隔GET一次url，将解析出的计数写入sink
type Poller struct {
	url      string
	interval time.Duration
	client   *http.Client
	sink     Sink
}

// NewPoller 创建轮询器
// 参数：cfg-来源配置（已补全默认值），sink-计数接收方
func NewPoller(cfg config.Feed, sink Sink) *Poller {
	return &Poller{
		url:      cfg.URL,
		interval: time.Duration(cfg.Interval * float64(time.Second)),
		client:   &http.Client{Timeout: time.Duration(cfg.Timeout * float64(time.Second))},
		sink:     sink,
	}
}

// Fetch 请求一次计数
func (p *Poller) Fetch(ctx context.Context) (map[entity.Direction]int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	res, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s: status %s", p.url, res.Status)
	}
	body, err := io.ReadAll(io.LimitReader(res.Body, maxBodySize))
	if err != nil {
		return nil, err
	}
	return Decode(body)
}

// Poll 请求一次并写入sink
// 返回：是否成功更新
func (p *Poller) Poll(ctx context.Context) bool {
	counts, err := p.Fetch(ctx)
	if err != nil {
		log.Warnf("live feed: %v", err)
		return false
	}
	p.sink.SetLiveCounts(counts)
	log.Debugf("live feed: %v", counts)
	return true
}

// Run 立即轮询一次，之后每个间隔轮询一次，直到ctx结束
func (p *Poller) Run(ctx context.Context) {
	log.Infof("polling %s every %v", p.url, p.interval)
	p.Poll(ctx)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Poll(ctx)
		}
	}
}
