// Package dataset 声明视频标注样本表以及内置的种子数据
package dataset

import (
	"path/filepath"
	"strings"

	"github.com/hatlonely/seeddb/cfg"
	"github.com/hatlonely/seeddb/rdb"
	"github.com/pkg/errors"
)

// Sample 一条视频标注样本
type Sample struct {
	ID         *int64              `rdb:"id,pk" json:"id"`
	Path       string              `rdb:"path" json:"path"`
	Annotation map[string][]string `rdb:"annotation,type=json" json:"annotation"`
	Tags       []string            `rdb:"tags,type=json" json:"tags"`
}

func (Sample) Table() string {
	return "Sample"
}

// UniqueKeys 同一视频可以有多条不同的标注
func (Sample) UniqueKeys() [][]string {
	return [][]string{{"path", "annotation"}}
}

// ConflictKey 重复写入时按 (path, annotation) 原地更新
func (Sample) ConflictKey() []string {
	return []string{"path", "annotation"}
}

// Models 所有表的声明
func Models() ([]*rdb.TableModel, error) {
	model, err := rdb.NewTableModelBuilder().FromStruct(Sample{})
	if err != nil {
		return nil, err
	}
	return []*rdb.TableModel{model}, nil
}

// Metadata 所有表的元数据
func Metadata() (*rdb.Metadata, error) {
	models, err := Models()
	if err != nil {
		return nil, err
	}
	return rdb.NewMetadata(models...)
}

// Samples 内置的四条样本，每次调用返回新的副本
func Samples() []*Sample {
	return []*Sample{
		{
			Path:       "https://i.imgur.com/ZVsTgFW.mp4",
			Annotation: map[string][]string{"captions": {"It said edible!"}},
		},
		{
			Path: "https://i.imgur.com/ZVsTgFW.mp4",
			Annotation: map[string][]string{
				"questions": {"What TV show is this video from?"},
				"answers":   {"The Simpsons"},
				"captions":  {"Interrupt dumping"},
			},
		},
		{
			Path:       "https://i.imgur.com/2QF3yfo.mp4",
			Annotation: map[string][]string{"captions": {"so little yet so fiesty"}},
		},
		{
			Path:       "https://www.youtube.com/watch?v=CiZO38P_3Y8",
			Annotation: map[string][]string{"captions": {"hello world"}},
		},
	}
}

// Records 包装为可写入的记录
func Records(samples []*Sample) ([]rdb.Record, error) {
	return rdb.StructRecords(samples)
}

// File 数据集文件格式
type File struct {
	Samples []*SampleSpec `cfg:"samples" validate:"required,min=1,dive"`
}

type SampleSpec struct {
	Path       string              `cfg:"path" validate:"required"`
	Annotation map[string][]string `cfg:"annotation"`
	Tags       []string            `cfg:"tags"`
}

// Load 读取数据集文件，路径为空时返回内置样本
func Load(path string) ([]*Sample, error) {
	if path == "" {
		return Samples(), nil
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".json", ".toml":
	default:
		return nil, errors.Errorf("unsupported dataset file %s", path)
	}

	var file File
	if err := cfg.LoadFile(path, &file); err != nil {
		return nil, errors.WithMessage(err, "load dataset failed")
	}
	if err := cfg.Validate(&file); err != nil {
		return nil, errors.WithMessagef(err, "invalid dataset %s", path)
	}

	samples := make([]*Sample, 0, len(file.Samples))
	for _, s := range file.Samples {
		samples = append(samples, &Sample{
			Path:       s.Path,
			Annotation: s.Annotation,
			Tags:       s.Tags,
		})
	}
	return samples, nil
}
