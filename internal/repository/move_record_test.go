package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/wfunc/microinject/internal/models"
	"gorm.io/gorm"
)

type MoveRecordRepositoryTestSuite struct {
	suite.Suite
	db   *gorm.DB
	repo *MoveRecordRepository
}

func (s *MoveRecordRepositoryTestSuite) SetupTest() {
	s.db = SetupTestDB()
	s.repo = NewMoveRecordRepository(s.db)
}

func (s *MoveRecordRepositoryTestSuite) TearDownTest() {
	CleanupTestDB(s.db)
}

func (s *MoveRecordRepositoryTestSuite) TestCreateAndFinish() {
	record := CreateTestMoveRecord(models.MoveKindManual, "session-1")
	s.NoError(s.repo.Create(record))
	s.NotZero(record.ID)

	finishedAt := record.StartedAt.Add(10 * time.Second)
	s.NoError(s.repo.Finish(record.ID, models.MoveOutcomeDone, finishedAt))

	got, err := s.repo.GetByID(record.ID)
	s.NoError(err)
	s.Equal(models.MoveOutcomeDone, got.Outcome)
	s.NotNil(got.FinishedAt)
	s.InDelta(10.0, got.ActualSeconds(), 0.5)
}

func (s *MoveRecordRepositoryTestSuite) TestLatestUnfinished() {
	first := CreateTestMoveRecord(models.MoveKindManual, "session-1")
	s.NoError(s.repo.Create(first))
	s.NoError(s.repo.Finish(first.ID, models.MoveOutcomeDone, time.Now()))

	second := CreateTestMoveRecord(models.MoveKindProgram, "session-1")
	second.StepCount = 3
	s.NoError(s.repo.Create(second))

	got, err := s.repo.LatestUnfinished("session-1")
	s.NoError(err)
	s.Equal(second.ID, got.ID)
	s.Equal(models.MoveKindProgram, got.Kind)
}

func (s *MoveRecordRepositoryTestSuite) TestQuery() {
	manual := CreateTestMoveRecord(models.MoveKindManual, "session-1")
	s.NoError(s.repo.Create(manual))
	s.NoError(s.repo.Finish(manual.ID, models.MoveOutcomeAborted, time.Now()))

	program := CreateTestMoveRecord(models.MoveKindProgram, "session-2")
	s.NoError(s.repo.Create(program))

	records, total, err := s.repo.Query(&models.MoveRecordQuery{Kind: models.MoveKindManual})
	s.NoError(err)
	s.EqualValues(1, total)
	s.Equal(models.MoveOutcomeAborted, records[0].Outcome)

	_, total, err = s.repo.Query(&models.MoveRecordQuery{SessionID: "session-2"})
	s.NoError(err)
	s.EqualValues(1, total)
}

func TestMoveRecordRepositoryTestSuite(t *testing.T) {
	suite.Run(t, new(MoveRecordRepositoryTestSuite))
}
