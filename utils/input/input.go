package input

import (
	"context"
	"fmt"
	"time"

	"git.fiblab.net/general/common/v2/mongoutil"
	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/agentsociety-crossroad/entity/forecast"
	"github.com/tsinghua-fib-lab/agentsociety-crossroad/utils/config"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// 下载历史序列的超时时间
const downloadTimeout = 30 * time.Second

// Input 输入数据
// 功能：存储仿真所需的所有输入数据
type Input struct {
	Historical forecast.Historical // 各方向历史车流序列
}

// HistoricalRecord MongoDB中一个方向的历史序列文档
type HistoricalRecord struct {
	Direction string `bson:"direction"`
	Values    []int  `bson:"values"`
}

// Init 加载输入数据
// 功能：根据配置加载历史车流序列
// 参数：config-配置对象
// 返回：加载完成的输入数据指针
// 算法说明：
// 1. 配置了input.historical时从MongoDB下载，每个文档为一个方向的序列
// 2. 否则使用input.historical_series
// 3. 未给出的方向使用内置参考序列
// 说明：下载或解析失败时panic，与其他启动阶段错误一致
func Init(config config.Config) *Input {
	series := config.Input.HistoricalSeries
	if path := config.Input.Historical; path != nil {
		client := mongoutil.NewClient(config.Input.URI)
		defer client.Disconnect(context.Background())
		coll := mongoutil.GetMongoColl(client, *path)
		log.Infof("start fetching from %s.%s", path.DB, path.Col)
		ctx, cancel := context.WithTimeout(context.Background(), downloadTimeout)
		defer cancel()
		var err error
		if series, err = Download(ctx, coll); err != nil {
			log.Panicf("failed to download historical series: %v", err)
		}
		log.Infof("finish fetching from %s.%s: %d series", path.DB, path.Col, len(series))
	}
	historical, err := forecast.HistoricalFromNames(forecast.DefaultHistorical(), series)
	if err != nil {
		log.Panicf("invalid historical series: %v", err)
	}
	return &Input{Historical: historical}
}

// Download 从集合中下载全部历史序列
// 返回：方向名到序列的映射，同一方向出现多次时后者覆盖前者
func Download(ctx context.Context, coll *mongo.Collection) (map[string][]int, error) {
	cur, err := coll.Find(ctx, bson.D{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("find: %w", err)
	}
	var records []HistoricalRecord
	if err := cur.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return Series(records), nil
}

// Series 将文档转换为方向名到序列的映射
func Series(records []HistoricalRecord) map[string][]int {
	return lo.SliceToMap(records, func(r HistoricalRecord) (string, []int) {
		return r.Direction, r.Values
	})
}
