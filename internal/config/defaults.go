package config

import (
	"time"

	"github.com/spf13/viper"
)

// SetDefaults registers the default value of every setting on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("debug", false)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("dataset.annotations", "Train_Labels.csv")
	v.SetDefault("dataset.sourcedir", "src/Train_Images/")
	v.SetDefault("dataset.sourceext", ".dcm")
	v.SetDefault("dataset.imagedir", "dataset/images/")
	v.SetDefault("dataset.labeldir", "dataset/labels/")
	v.SetDefault("dataset.workers", 1)
	v.SetDefault("dataset.screentext", false)
	v.SetDefault("dataset.ocrlanguage", "eng")

	v.SetDefault("split.positivecount", 500)
	v.SetDefault("split.negativecount", 500)
	v.SetDefault("split.valfraction", 0.2)
	v.SetDefault("split.seed", 0)
	v.SetDefault("split.datayaml", "dataset/data.yaml")

	v.SetDefault("model.path", "best.onnx")
	v.SetDefault("model.url", "")
	v.SetDefault("model.cachedir", "")
	v.SetDefault("model.sha256", "")
	v.SetDefault("model.librarypath", "")
	v.SetDefault("model.inputsize", 640)
	v.SetDefault("model.classes", []string{"pneumonia"})
	v.SetDefault("model.iouthreshold", 0.7)
	v.SetDefault("model.threshold", 0.25)

	v.SetDefault("http.listen", ":8080")
	v.SetDefault("http.reportttl", 30*time.Minute)
	v.SetDefault("http.maxuploadbytes", 32<<20)
}
