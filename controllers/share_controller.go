package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/SecgPower/cloudpan/config"
	"github.com/SecgPower/cloudpan/models"
	"github.com/SecgPower/cloudpan/services"
	"github.com/SecgPower/cloudpan/utils"
)

// ShareController manages share links and serves their public side.
type ShareController struct {
	shares *services.ShareRegistry
	files  *FileController
}

func NewShareController(shares *services.ShareRegistry, files *FileController) *ShareController {
	return &ShareController{shares: shares, files: files}
}

func fileShareView(s models.FileShare) gin.H {
	return gin.H{
		"id":           s.ID,
		"share_code":   s.ShareCode,
		"file_id":      s.FileID,
		"created_time": s.CreatedTime,
		"expires_in":   s.ExpiresIn,
		"is_active":    s.IsActive,
	}
}

func folderShareView(s models.FolderShare) gin.H {
	return gin.H{
		"id":           s.ID,
		"share_code":   s.ShareCode,
		"folder_id":    s.FolderID,
		"created_time": s.CreatedTime,
		"expires_in":   s.ExpiresIn,
		"is_active":    s.IsActive,
	}
}

// CreateFileShare issues a share link for one of the requester's files.
func (s *ShareController) CreateFileShare(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40113, "unauthorized")
		return
	}
	fileID, ok := parseIDParam(ctx, "id")
	if !ok {
		return
	}
	type request struct {
		Hours int `json:"hours"`
	}
	var req request
	if err := ctx.ShouldBindJSON(&req); err != nil && ctx.Request.ContentLength > 0 {
		utils.Error(ctx, http.StatusBadRequest, 40030, "invalid request payload")
		return
	}
	if req.Hours <= 0 {
		req.Hours = config.Get().ShareDefaultHours
	}

	share, err := s.shares.CreateFileShare(userID, fileID, req.Hours)
	if err != nil {
		serviceError(ctx, err)
		return
	}
	utils.Success(ctx, fileShareView(*share))
}

// CreateFolderShare issues a share link for one of the requester's folders.
func (s *ShareController) CreateFolderShare(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40113, "unauthorized")
		return
	}
	folderID, ok := parseIDParam(ctx, "id")
	if !ok {
		return
	}
	type request struct {
		Hours int `json:"hours"`
	}
	var req request
	if err := ctx.ShouldBindJSON(&req); err != nil && ctx.Request.ContentLength > 0 {
		utils.Error(ctx, http.StatusBadRequest, 40030, "invalid request payload")
		return
	}
	if req.Hours <= 0 {
		req.Hours = config.Get().ShareDefaultHours
	}

	share, err := s.shares.CreateFolderShare(userID, folderID, req.Hours)
	if err != nil {
		serviceError(ctx, err)
		return
	}
	utils.Success(ctx, folderShareView(*share))
}

// Mine lists the requester's file and folder shares, active or not.
func (s *ShareController) Mine(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40113, "unauthorized")
		return
	}
	fileShares, folderShares, err := s.shares.OwnedShares(userID)
	if err != nil {
		serviceError(ctx, err)
		return
	}

	fs := make([]gin.H, 0, len(fileShares))
	for _, share := range fileShares {
		v := fileShareView(share)
		v["filename"] = share.File.Filename
		fs = append(fs, v)
	}
	ds := make([]gin.H, 0, len(folderShares))
	for _, share := range folderShares {
		v := folderShareView(share)
		v["folder_name"] = share.Folder.Name
		ds = append(ds, v)
	}
	utils.Success(ctx, gin.H{"file_shares": fs, "folder_shares": ds})
}

// RevokeFileShare deactivates a file share. Revoking an already
// inactive share succeeds quietly.
func (s *ShareController) RevokeFileShare(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40113, "unauthorized")
		return
	}
	shareID, ok := parseIDParam(ctx, "id")
	if !ok {
		return
	}
	if err := s.shares.RevokeFileShare(userID, shareID); err != nil {
		serviceError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"revoked": shareID})
}

// RevokeFolderShare deactivates a folder share.
func (s *ShareController) RevokeFolderShare(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40113, "unauthorized")
		return
	}
	shareID, ok := parseIDParam(ctx, "id")
	if !ok {
		return
	}
	if err := s.shares.RevokeFolderShare(userID, shareID); err != nil {
		serviceError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"revoked": shareID})
}

// ResolveFile shows the metadata behind a public file share link.
func (s *ShareController) ResolveFile(ctx *gin.Context) {
	_, file, err := s.shares.ResolveFileShare(ctx.Param("code"))
	if err != nil {
		serviceError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{
		"filename":    file.Filename,
		"filesize":    file.Filesize,
		"size_human":  utils.HumanSize(file.Filesize),
		"upload_time": file.UploadTime,
	})
}

// DownloadFile streams the file behind a public share link.
func (s *ShareController) DownloadFile(ctx *gin.Context) {
	_, file, err := s.shares.ResolveFileShare(ctx.Param("code"))
	if err != nil {
		serviceError(ctx, err)
		return
	}
	s.files.serveFile(ctx, file)
}

// ResolveFolder shows the shared folder and its immediate children.
func (s *ShareController) ResolveFolder(ctx *gin.Context) {
	folder, subfolders, files, err := s.shares.ResolveFolderShare(ctx.Param("code"))
	if err != nil {
		serviceError(ctx, err)
		return
	}

	folderList := make([]gin.H, 0, len(subfolders))
	for _, sub := range subfolders {
		folderList = append(folderList, gin.H{"id": sub.ID, "name": sub.Name})
	}
	fileList := make([]gin.H, 0, len(files))
	for _, file := range files {
		fileList = append(fileList, gin.H{
			"id":          file.ID,
			"filename":    file.Filename,
			"filesize":    file.Filesize,
			"size_human":  utils.HumanSize(file.Filesize),
			"upload_time": file.UploadTime,
		})
	}
	utils.Success(ctx, gin.H{
		"folder":  gin.H{"id": folder.ID, "name": folder.Name},
		"folders": folderList,
		"files":   fileList,
	})
}

// DownloadFolderFile streams one direct child of a shared folder.
func (s *ShareController) DownloadFolderFile(ctx *gin.Context) {
	_, _, files, err := s.shares.ResolveFolderShare(ctx.Param("code"))
	if err != nil {
		serviceError(ctx, err)
		return
	}
	fileID, ok := parseIDParam(ctx, "file_id")
	if !ok {
		return
	}
	for i := range files {
		if files[i].ID == fileID {
			s.files.serveFile(ctx, &files[i])
			return
		}
	}
	utils.Error(ctx, http.StatusNotFound, 40400, "file not found in shared folder")
}
