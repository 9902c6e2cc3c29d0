package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/wfunc/microinject/internal/models"
	"gorm.io/gorm"
)

type SerialLogRepositoryTestSuite struct {
	suite.Suite
	db   *gorm.DB
	repo *SerialLogRepository
}

func (s *SerialLogRepositoryTestSuite) SetupTest() {
	s.db = SetupTestDB()
	s.repo = NewSerialLogRepository(s.db)
}

func (s *SerialLogRepositoryTestSuite) TearDownTest() {
	CleanupTestDB(s.db)
}

func (s *SerialLogRepositoryTestSuite) TestCreateAndGet() {
	log := CreateTestSerialLog(models.SerialDirectionTx, "M", "session-1")
	s.NoError(s.repo.Create(log))
	s.NotZero(log.ID)

	got, err := s.repo.GetByID(log.ID)
	s.NoError(err)
	s.Equal("M", got.Text)
	s.Equal(models.SerialDirectionTx, got.Direction)
	// BeforeCreate 补齐字节数
	s.Equal(1, got.BytesCount)
}

func (s *SerialLogRepositoryTestSuite) TestCreateBatch() {
	logs := []*models.SerialLog{
		CreateTestSerialLog(models.SerialDirectionTx, "M", "session-1"),
		CreateTestSerialLog(models.SerialDirectionRx, "Enter Direction>", "session-1"),
		CreateTestSerialLog(models.SerialDirectionTx, "F", "session-1"),
	}
	s.NoError(s.repo.CreateBatch(logs))
	s.NoError(s.repo.CreateBatch(nil))

	got, err := s.repo.GetBySessionID("session-1")
	s.NoError(err)
	s.Len(got, 3)
}

func (s *SerialLogRepositoryTestSuite) TestQueryFilters() {
	s.NoError(s.repo.CreateBatch([]*models.SerialLog{
		CreateTestSerialLog(models.SerialDirectionTx, "M", "session-1"),
		CreateTestSerialLog(models.SerialDirectionRx, "Enter Direction>", "session-1"),
		CreateTestSerialLog(models.SerialDirectionRx, "[DONE]", "session-2"),
	}))

	// 按方向过滤
	logs, total, err := s.repo.Query(&models.SerialLogQuery{Direction: models.SerialDirectionRx})
	s.NoError(err)
	s.EqualValues(2, total)
	s.Len(logs, 2)

	// 按会话过滤
	logs, total, err = s.repo.Query(&models.SerialLogQuery{SessionID: "session-2"})
	s.NoError(err)
	s.EqualValues(1, total)
	s.Equal("[DONE]", logs[0].Text)

	// 文本模糊匹配
	logs, total, err = s.repo.Query(&models.SerialLogQuery{Contains: "Direction"})
	s.NoError(err)
	s.EqualValues(1, total)

	// 分页
	logs, total, err = s.repo.Query(&models.SerialLogQuery{Limit: 2})
	s.NoError(err)
	s.EqualValues(3, total)
	s.Len(logs, 2)
}

func (s *SerialLogRepositoryTestSuite) TestGetStats() {
	s.NoError(s.repo.CreateBatch([]*models.SerialLog{
		CreateTestSerialLog(models.SerialDirectionTx, "M", "session-1"),
		CreateTestSerialLog(models.SerialDirectionTx, "F", "session-1"),
		CreateTestSerialLog(models.SerialDirectionRx, "[DONE]", "session-1"),
	}))

	stats, err := s.repo.GetStats(nil, nil)
	s.NoError(err)
	s.EqualValues(3, stats.TotalCount)
	s.EqualValues(2, stats.TotalTx)
	s.EqualValues(1, stats.TotalRx)
	s.EqualValues(0, stats.TotalErrors)
	s.EqualValues(len("M")+len("F")+len("[DONE]"), stats.TotalBytes)
}

func (s *SerialLogRepositoryTestSuite) TestDeleteBefore() {
	old := CreateTestSerialLog(models.SerialDirectionTx, "M", "session-1")
	old.CreatedAt = time.Now().Add(-48 * time.Hour)
	s.NoError(s.repo.Create(old))
	s.NoError(s.repo.Create(CreateTestSerialLog(models.SerialDirectionTx, "R", "session-1")))

	deleted, err := s.repo.DeleteBefore(time.Now().Add(-24 * time.Hour))
	s.NoError(err)
	s.EqualValues(1, deleted)

	_, total, err := s.repo.Query(&models.SerialLogQuery{})
	s.NoError(err)
	s.EqualValues(1, total)
}

func TestSerialLogRepositoryTestSuite(t *testing.T) {
	suite.Run(t, new(SerialLogRepositoryTestSuite))
}
