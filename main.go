package main

import (
	"github.com/SecgPower/cloudpan/config"
	"github.com/SecgPower/cloudpan/models"
	"github.com/SecgPower/cloudpan/routes"
	"github.com/SecgPower/cloudpan/storage"
	"github.com/SecgPower/cloudpan/utils"
)

func main() {
	cfg := config.Load()

	// Initialize logger early
	if err := utils.InitLogger(cfg); err != nil {
		panic(err)
	}

	db := config.InitDatabase(&models.User{}, &models.Folder{}, &models.File{}, &models.FileShare{}, &models.FolderShare{})

	store, err := storage.NewDiskStore(cfg.UploadRoot)
	if err != nil {
		utils.Sugar.Fatalf("prepare upload root %s: %v", cfg.UploadRoot, err)
	}

	r := routes.SetupRouter(db, store)

	utils.Sugar.Infof("Starting server on port %s (graceful)", cfg.AppPort)
	if err := utils.GraceServer(":"+cfg.AppPort, r); err != nil {
		utils.Sugar.Fatalf("server stopped with error: %v", err)
	}
}
