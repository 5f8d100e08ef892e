package controllers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/SecgPower/cloudpan/config"
	"github.com/SecgPower/cloudpan/models"
	"github.com/SecgPower/cloudpan/services"
	"github.com/SecgPower/cloudpan/storage"
	"github.com/SecgPower/cloudpan/utils"
)

// FileController exposes the folder tree, uploads and downloads.
type FileController struct {
	tree      *services.StorageTree
	quota     *services.QuotaLedger
	lifecycle *services.Lifecycle
	store     storage.Store
}

func NewFileController(tree *services.StorageTree, quota *services.QuotaLedger, lifecycle *services.Lifecycle, store storage.Store) *FileController {
	return &FileController{tree: tree, quota: quota, lifecycle: lifecycle, store: store}
}

func fileView(f models.File) gin.H {
	return gin.H{
		"id":          f.ID,
		"filename":    f.Filename,
		"filesize":    f.Filesize,
		"size_human":  utils.HumanSize(f.Filesize),
		"folder_id":   f.FolderID,
		"upload_time": f.UploadTime,
	}
}

func folderView(f models.Folder) gin.H {
	return gin.H{
		"id":         f.ID,
		"name":       f.Name,
		"parent_id":  f.ParentID,
		"created_at": f.CreatedAt,
	}
}

// List returns the contents of a folder, or of the root when no
// folder_id query parameter is given, along with its breadcrumb trail.
func (f *FileController) List(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40113, "unauthorized")
		return
	}
	folderID, ok := parseOptionalFolderID(ctx.Query("folder_id"))
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40020, "invalid folder_id")
		return
	}

	current, folders, files, err := f.tree.Resolve(userID, folderID)
	if err != nil {
		serviceError(ctx, err)
		return
	}

	crumbs := []gin.H{}
	if current != nil {
		trail, err := f.tree.Breadcrumbs(current)
		if err != nil {
			serviceError(ctx, err)
			return
		}
		for _, c := range trail {
			crumbs = append(crumbs, gin.H{"id": c.ID, "name": c.Name})
		}
	}

	folderList := make([]gin.H, 0, len(folders))
	for _, sub := range folders {
		folderList = append(folderList, folderView(sub))
	}
	fileList := make([]gin.H, 0, len(files))
	for _, file := range files {
		fileList = append(fileList, fileView(file))
	}

	resp := gin.H{"folders": folderList, "files": fileList, "breadcrumbs": crumbs}
	if current != nil {
		resp["current"] = folderView(*current)
	}
	utils.Success(ctx, resp)
}

// Recent returns the ten most recently uploaded files.
func (f *FileController) Recent(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40113, "unauthorized")
		return
	}
	files, err := f.tree.RecentFiles(userID, 10)
	if err != nil {
		serviceError(ctx, err)
		return
	}
	list := make([]gin.H, 0, len(files))
	for _, file := range files {
		list = append(list, fileView(file))
	}
	utils.Success(ctx, gin.H{"files": list})
}

// Usage reports the account's storage consumption against its cap.
func (f *FileController) Usage(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40113, "unauthorized")
		return
	}
	used, capacity, err := f.quota.Usage(userID)
	if err != nil {
		serviceError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{
		"used":           used,
		"capacity":       capacity,
		"used_human":     utils.HumanSize(used),
		"capacity_human": utils.HumanSize(capacity),
	})
}

// CreateFolder creates a folder under the given parent, or at the root.
func (f *FileController) CreateFolder(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40113, "unauthorized")
		return
	}
	type request struct {
		Name     string `json:"name" binding:"required,max=255"`
		ParentID *uint  `json:"parent_id"`
	}
	var req request
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40021, "invalid request payload")
		return
	}

	folder, err := f.tree.CreateFolder(userID, req.ParentID, req.Name)
	if err != nil {
		serviceError(ctx, err)
		return
	}
	utils.Success(ctx, folderView(*folder))
}

// Upload stores a multipart file into the given folder, charging quota.
func (f *FileController) Upload(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40113, "unauthorized")
		return
	}
	folderID, ok := parseOptionalFolderID(ctx.PostForm("folder_id"))
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40020, "invalid folder_id")
		return
	}

	header, err := ctx.FormFile("file")
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40022, "missing file field")
		return
	}

	cfg := config.Get()
	if header.Size > cfg.MaxUploadBytes {
		utils.Error(ctx, http.StatusRequestEntityTooLarge, 41301, "file exceeds the per-upload limit")
		return
	}
	if !allowedExtension(header.Filename, cfg.AllowedExtensions) {
		utils.Error(ctx, http.StatusBadRequest, 40023, "file type not allowed")
		return
	}

	src, err := header.Open()
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40024, "failed to read upload")
		return
	}
	defer src.Close()

	file, err := f.quota.SaveUpload(userID, folderID, header.Filename, src)
	if err != nil {
		serviceError(ctx, err)
		return
	}
	utils.Success(ctx, fileView(*file))
}

// RenameFile renames a file, moving its bytes to the new name.
func (f *FileController) RenameFile(ctx *gin.Context) {
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
		Name string `json:"name" binding:"required,max=255"`
	}
	var req request
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40021, "invalid request payload")
		return
	}

	file, err := f.tree.RenameFile(userID, fileID, req.Name)
	if err != nil {
		serviceError(ctx, err)
		return
	}
	utils.Success(ctx, fileView(*file))
}

// RenameFolder renames a folder. The physical layout keys folders by id,
// so no disk move is needed.
func (f *FileController) RenameFolder(ctx *gin.Context) {
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
		Name string `json:"name" binding:"required,max=255"`
	}
	var req request
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40021, "invalid request payload")
		return
	}

	folder, err := f.tree.RenameFolder(userID, folderID, req.Name)
	if err != nil {
		serviceError(ctx, err)
		return
	}
	utils.Success(ctx, folderView(*folder))
}

// MoveFile relocates a file into another folder, or to the root.
func (f *FileController) MoveFile(ctx *gin.Context) {
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
		FolderID *uint `json:"folder_id"`
	}
	var req request
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40021, "invalid request payload")
		return
	}

	file, err := f.tree.MoveFile(userID, fileID, req.FolderID)
	if err != nil {
		serviceError(ctx, err)
		return
	}
	utils.Success(ctx, fileView(*file))
}

// Download streams a file owned by the requester.
func (f *FileController) Download(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40113, "unauthorized")
		return
	}
	fileID, ok := parseIDParam(ctx, "id")
	if !ok {
		return
	}

	file, err := f.tree.File(userID, fileID)
	if err != nil {
		serviceError(ctx, err)
		return
	}
	f.serveFile(ctx, file)
}

func (f *FileController) serveFile(ctx *gin.Context, file *models.File) {
	reader, err := f.store.Open(file.Filepath)
	if err != nil {
		utils.Sugar.Errorf("open stored file %s: %v", file.Filepath, err)
		utils.Error(ctx, http.StatusInternalServerError, 50060, "stored file unavailable")
		return
	}
	defer reader.Close()

	safeName := strings.ReplaceAll(file.Filename, `"`, "")
	ctx.Header("Content-Disposition", `attachment; filename="`+safeName+`"`)
	ctx.DataFromReader(http.StatusOK, file.Filesize, "application/octet-stream", reader, nil)
}

// DeleteFile removes a file and refunds its quota charge.
func (f *FileController) DeleteFile(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40113, "unauthorized")
		return
	}
	fileID, ok := parseIDParam(ctx, "id")
	if !ok {
		return
	}
	if err := f.lifecycle.DeleteFile(userID, fileID); err != nil {
		serviceError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"deleted": fileID})
}

// DeleteFolder removes a folder and its whole subtree.
func (f *FileController) DeleteFolder(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40113, "unauthorized")
		return
	}
	folderID, ok := parseIDParam(ctx, "id")
	if !ok {
		return
	}
	if err := f.lifecycle.DeleteFolder(userID, folderID); err != nil {
		serviceError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"deleted": folderID})
}
